package refiner

import (
	"context"
	"errors"
	"time"

	"rio-pipeline/models"
	"rio-pipeline/scraper/perizia"
	"rio-pipeline/utils"
)

// Options tunes how refinement calls are issued.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxConcurrency int
	RateLimitMs    int
}

// Refiner evaluates each record with a language model, using its appraisal
// document as context.
type Refiner struct {
	client Client
	docs   perizia.Source
	opts   Options
	retry  *utils.RetryConfig
	logger *utils.Logger
}

func New(client Client, docs perizia.Source, opts Options, logger *utils.Logger) *Refiner {
	return &Refiner{
		client: client,
		docs:   docs,
		opts:   opts,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   opts.RetryDelay,
			Logger:      logger,
		},
		logger: logger,
	}
}

type outcome struct {
	ref *models.Refinement
	err *models.RowError
}

// Refine returns one refinement per record that could be evaluated, in input
// order, and one RowError per record that could not. A failed record never
// stops the others.
func (r *Refiner) Refine(ctx context.Context, records []models.AuctionRecord) ([]models.Refinement, []models.RowError) {
	r.logger.Info("[refiner] Refining %d records (concurrency %d)", len(records), r.opts.MaxConcurrency)

	outcomes := make([]outcome, len(records))
	pool := utils.NewWorkerPool(r.opts.MaxConcurrency, r.opts.RateLimitMs)
	for i := range records {
		pool.Submit(ctx, func(ctx context.Context) {
			outcomes[i] = r.refineOne(ctx, records[i])
		})
	}
	pool.Wait()

	var refs []models.Refinement
	var rowErrs []models.RowError
	for _, o := range outcomes {
		switch {
		case o.ref != nil:
			refs = append(refs, *o.ref)
		case o.err != nil:
			rowErrs = append(rowErrs, *o.err)
		}
	}
	r.logger.Info("[refiner] Done: %d refined, %d failed", len(refs), len(rowErrs))
	return refs, rowErrs
}

func (r *Refiner) refineOne(ctx context.Context, rec models.AuctionRecord) outcome {
	fail := func(stage string, err error) outcome {
		r.logger.Error("[refiner] %s: %s failed: %v", rec.ID, stage, err)
		return outcome{err: &models.RowError{ID: rec.ID, Stage: stage, Err: err}}
	}

	if err := ctx.Err(); err != nil {
		return fail("refine", err)
	}

	doc, err := r.docs.Text(ctx, rec)
	if err != nil {
		return fail("document", err)
	}

	req := Request{ID: rec.ID, Meta: rec.Row(), Document: doc}
	var (
		ref       models.Refinement
		discarded error
	)
	err = r.retry.Do(ctx, "refine-"+rec.ID, func(ctx context.Context) error {
		callCtx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}

		raw, err := r.client.Evaluate(callCtx, req)
		if err != nil {
			return err
		}
		parsed, notes, err := ParsePayload(raw, rec.ID)
		for _, note := range notes {
			r.logger.Warn("[refiner] %s: %s", rec.ID, note)
		}
		if errors.Is(err, ErrDiscarded) {
			discarded = err
			return nil
		}
		if err != nil {
			return err
		}
		ref = parsed
		return nil
	})
	if err != nil {
		return fail("refine", err)
	}
	if discarded != nil {
		return fail("refine", discarded)
	}
	return outcome{ref: &ref}
}
