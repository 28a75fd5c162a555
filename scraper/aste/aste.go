package aste

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"rio-pipeline/config"
	"rio-pipeline/utils"
)

const (
	pageSize       = 100
	requestTimeout = 15 * time.Second
	windowStart    = 60 * 24 * time.Hour
	windowEnd      = 120 * 24 * time.Hour
	maxPages       = 1000
)

// ErrCursorStalled is returned when the API reports more results but does not
// advance its cursor.
var ErrCursorStalled = errors.New("listing api cursor did not advance")

// Query selects the auctions to download.
type Query struct {
	Province     string
	SaleFrom     time.Time
	SaleTo       time.Time
	PriceMin     int
	PriceMax     int
	PropertyType string
}

// DefaultQuery builds the standard query: sales dated 60 to 120 days after now.
func DefaultQuery(cfg *config.Config, now time.Time) Query {
	return Query{
		Province:     cfg.AsteProvince,
		SaleFrom:     now.Add(windowStart),
		SaleTo:       now.Add(windowEnd),
		PriceMin:     cfg.PriceMin,
		PriceMax:     cfg.PriceMax,
		PropertyType: cfg.PropertyType,
	}
}

type page struct {
	Aste      []map[string]any `json:"aste"`
	Remaining int              `json:"aste_rimanenti"`
	LastID    json.RawMessage  `json:"ultimo_id"`
}

// Client downloads auction listings from the listing API, one page of up to
// 100 records per request, following the ultimo_id cursor.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   *utils.RetryConfig
	logger  *utils.Logger
}

// New creates a Client from the application config.
func New(cfg *config.Config, logger *utils.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimitMs > 0 {
		limit = rate.Every(time.Duration(cfg.RateLimitMs) * time.Millisecond)
	}
	return &Client{
		baseURL: cfg.AsteBaseURL,
		apiKey:  cfg.AsteAPIKey,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryDelay,
			Exponential: true,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Fetch downloads every page matching q. Rows are returned as decoded JSON
// objects with numbers kept as json.Number.
func (c *Client) Fetch(ctx context.Context, q Query) ([]map[string]any, error) {
	c.logger.Info("[aste] Fetching province %s, sales %s to %s",
		q.Province, q.SaleFrom.Format(time.DateOnly), q.SaleTo.Format(time.DateOnly))

	var rows []map[string]any
	cursor := ""
	for n := 1; n <= maxPages; n++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return rows, fmt.Errorf("aste: %w", err)
		}

		var p *page
		err := c.retry.Do(ctx, "aste-page-"+strconv.Itoa(n), func(ctx context.Context) error {
			var err error
			p, err = c.fetchPage(ctx, q, cursor)
			return err
		})
		if err != nil {
			return rows, fmt.Errorf("aste: page %d: %w", n, err)
		}

		rows = append(rows, p.Aste...)
		c.logger.Debug("[aste] Page %d: %d rows, %d remaining", n, len(p.Aste), p.Remaining)

		if p.Remaining <= 0 {
			c.logger.Info("[aste] Downloaded %d auctions in %d pages", len(rows), n)
			return rows, nil
		}

		next := cursorString(p.LastID)
		if next == "" || next == cursor {
			return rows, fmt.Errorf("aste: page %d: %w", n, ErrCursorStalled)
		}
		cursor = next
	}
	return rows, fmt.Errorf("aste: stopped after %d pages: %w", maxPages, ErrCursorStalled)
}

func (c *Client) fetchPage(ctx context.Context, q Query, cursor string) (*page, error) {
	params := url.Values{}
	params.Set("output_format", "json")
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("prov", q.Province)
	params.Set("data_vendita_da", q.SaleFrom.Format(time.DateOnly))
	params.Set("data_vendita_a", q.SaleTo.Format(time.DateOnly))
	params.Set("prezzo_min", strconv.Itoa(q.PriceMin))
	params.Set("prezzo_max", strconv.Itoa(q.PriceMax))
	params.Set("tipologia", q.PropertyType)
	if cursor != "" {
		params.Set("id", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var p page
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &p, nil
}

func cursorString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
