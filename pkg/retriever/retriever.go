// Package retriever decides between vector ranking and the small-pool
// fallback, and bounds pagination depth.
package retriever

import (
	"context"

	"go.uber.org/zap"

	"jobmatch/pkg/config"
	"jobmatch/pkg/dal"
	"jobmatch/pkg/filter"
)

// fallbackThreshold is the pool size at or below which vector ranking is
// skipped: with so few candidates the distance ordering carries no signal.
const fallbackThreshold = 5

// Store is the data-layer surface the retriever needs. The callback runs
// inside a single read-only transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q dal.Querier) error) error
}

// Result carries the retrieved rows plus pool metadata.
type Result struct {
	Rows []dal.Row
	// Total is the size of the filtered pool before pagination.
	Total int
	// FellBack reports that the small-pool path served this request and
	// the raw scores are all zero.
	FellBack bool
}

// Retriever fetches candidates for one compiled request.
type Retriever struct {
	store Store
	cfg   *config.Config
	log   *zap.Logger
}

// New builds a Retriever.
func New(store Store, cfg *config.Config, log *zap.Logger) *Retriever {
	return &Retriever{store: store, cfg: cfg, log: log}
}

// Retrieve counts the filtered pool, then either ranks by vector distance or
// falls back to a recency fetch when the pool holds five or fewer jobs. Both
// statements run in one transaction, so the path decision, the page, and the
// reported total all come from the same snapshot. Offsets beyond the
// configured maximum clamp to zero. Raw scores are passed through
// untransformed.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float32, f *filter.Compiled, limit, offset int) (*Result, error) {
	var res *Result
	err := r.store.InTx(ctx, func(ctx context.Context, q dal.Querier) error {
		total, err := q.CountJobs(ctx, f)
		if err != nil {
			return err
		}

		if total <= fallbackThreshold {
			// The offset does not apply on this path: the whole pool
			// fits in one page.
			rows, err := q.FetchFallback(ctx, f, limit)
			if err != nil {
				return err
			}
			res = &Result{Rows: rows, Total: total, FellBack: true}
			return nil
		}

		if max := r.cfg.Pagination.MaxOffset; offset > max {
			r.log.Warn("offset exceeds maximum, clamping to zero",
				zap.Int("offset", offset),
				zap.Int("max_offset", max))
			offset = 0
		}

		rows, err := q.SearchByVector(ctx, embedding, f, limit, offset)
		if err != nil {
			return err
		}
		res = &Result{Rows: rows, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
