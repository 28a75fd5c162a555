package storage

import "rio-pipeline/models"

// AuctionWriter is the interface any output backend must satisfy.
type AuctionWriter interface {
	Write(records []models.AuctionRecord) (int, error)
	Close() error
}
