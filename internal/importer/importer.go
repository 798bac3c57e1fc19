// Package importer drives whole-catalog writes: first-time bulk import of
// creation candidates and global repricing after a settings change. Both
// stage records in memory, then flush through the catalog batch writers in
// sequential bounded transactions.
package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/pricing"
	"github.com/puntogamer/gamestore/internal/reconcile"
)

// Phase labels the driver's progress through one operation.
type Phase string

const (
	PhaseStaging    Phase = "staging"
	PhaseCommitting Phase = "committing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Progress is a snapshot of one operation's state, reported after staging
// completes and after every committed batch. Failure is terminal; there is
// no auto-retry, and batches committed before the failure stay committed.
type Progress struct {
	Phase   Phase
	Batch   int
	Batches int
	Done    int
	Total   int
}

// ProgressFunc receives progress snapshots. May be nil.
type ProgressFunc func(Progress)

// Importer applies calculator results across the whole catalog.
type Importer struct {
	store     *catalog.Store
	batchSize int
}

// New returns an Importer committing at most batchSize writes per
// transaction; a non-positive value falls back to catalog.DefaultBatchSize.
func New(store *catalog.Store, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = catalog.DefaultBatchSize
	}
	return &Importer{store: store, batchSize: batchSize}
}

// BulkImport creates catalog products from reconciliation candidates.
// Candidates without a name or a positive cost are skipped and counted, not
// fatal. Created products start in stock, visible, priced by the calculator
// under the given settings snapshot.
func (im *Importer) BulkImport(ctx context.Context, candidates []reconcile.Candidate, s pricing.Settings, progress ProgressFunc) (created, skipped int, err error) {
	report(progress, Progress{Phase: PhaseStaging})

	staged := make([]catalog.Product, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" || c.CostPrice <= 0 {
			skipped++
			continue
		}

		input := pricing.ItemInput{CostPrice: c.CostPrice, Currency: c.Currency}
		quote := pricing.Compute(input, s)

		staged = append(staged, catalog.Product{
			ID:        uuid.NewString(),
			SKU:       c.SKU,
			Name:      c.Name,
			Slug:      Slugify(c.Name),
			Platform:  c.Platform,
			CostPrice: c.CostPrice,
			Currency:  c.Currency,
			Price:     quote.FinalPrice,
			BasePrice: quote.BasePrice,
			Stock:     true,
			IsHidden:  false,
		})
	}

	done, err := im.flushInserts(ctx, staged, progress)
	return done, skipped, err
}

// RecalculateAll recomputes every product's prices under the given settings
// snapshot and persists only the ones whose stored values differ. This is
// what keeps persisted prices re-derivable after a margin, VAT or exchange
// rate change.
func (im *Importer) RecalculateAll(ctx context.Context, s pricing.Settings, progress ProgressFunc) (int, error) {
	report(progress, Progress{Phase: PhaseStaging})

	items, err := im.store.GetAll(ctx)
	if err != nil {
		report(progress, Progress{Phase: PhaseFailed})
		return 0, err
	}

	staged := make([]catalog.Update, 0)
	for _, item := range items {
		quote := pricing.Compute(item.PricingInput(), s)
		if quote.BasePrice == item.BasePrice && quote.FinalPrice == item.Price {
			continue
		}
		staged = append(staged, catalog.Update{
			ProductID: item.ID,
			Kind:      catalog.UpdatePricesOnly,
			BasePrice: quote.BasePrice,
			Price:     quote.FinalPrice,
		})
	}

	batches := im.batchCount(len(staged))
	report(progress, Progress{Phase: PhaseCommitting, Batches: batches, Total: len(staged)})

	done, err := im.store.ApplyUpdates(ctx, staged, im.batchSize, func(done, total int) {
		report(progress, Progress{
			Phase:   PhaseCommitting,
			Batch:   im.batchCount(done),
			Batches: batches,
			Done:    done,
			Total:   total,
		})
	})
	if err != nil {
		report(progress, Progress{Phase: PhaseFailed, Batches: batches, Done: done, Total: len(staged)})
		return done, err
	}

	report(progress, Progress{Phase: PhaseDone, Batch: batches, Batches: batches, Done: done, Total: len(staged)})
	return done, nil
}

func (im *Importer) flushInserts(ctx context.Context, staged []catalog.Product, progress ProgressFunc) (int, error) {
	batches := im.batchCount(len(staged))
	report(progress, Progress{Phase: PhaseCommitting, Batches: batches, Total: len(staged)})

	done, err := im.store.InsertBatch(ctx, staged, im.batchSize, func(done, total int) {
		report(progress, Progress{
			Phase:   PhaseCommitting,
			Batch:   im.batchCount(done),
			Batches: batches,
			Done:    done,
			Total:   total,
		})
	})
	if err != nil {
		report(progress, Progress{Phase: PhaseFailed, Batches: batches, Done: done, Total: len(staged)})
		return done, err
	}

	report(progress, Progress{Phase: PhaseDone, Batch: batches, Batches: batches, Done: done, Total: len(staged)})
	return done, nil
}

func (im *Importer) batchCount(n int) int {
	return (n + im.batchSize - 1) / im.batchSize
}

func report(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}
