package models

// RunReport holds the end-of-run summary printed after the CSV is written.
type RunReport struct {
	RunID         string
	RowsRead      int
	RowsDropped   int
	RowsProcessed int
	RowsFailed    int
	Refined       int
	RowsMutated   int
	RowsWritten   int
	Passing       int
	PassRatio     float64
	RequiredRatio float64
	ROIThreshold  float64
	TargetLabel   RiskLabel
	Policy        string
	AverageROI    float64
	BestROI       *AuctionRecord
	RiskByLabel   map[RiskLabel]int
	FailedIDs     []string
	OutputPath    string
}

