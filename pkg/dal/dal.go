// Package dal implements relational and vector access to the job store on
// Postgres with pgvector, via sqlx over the pgx stdlib driver.
package dal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"jobmatch/pkg/config"
	"jobmatch/pkg/model"
)

// maxBackoffTotal caps the cumulative retry sleep per logical query.
const maxBackoffTotal = 500 * time.Millisecond

// DAL owns the connection pool and executes the three query shapes used by
// the matching pipeline.
type DAL struct {
	db  *sqlx.DB
	cfg *config.Config
	log *zap.Logger
}

// Open connects to the primary store and applies the pool settings.
func Open(cfg *config.Config, log *zap.Logger) (*DAL, error) {
	db, err := sqlx.Open("pgx", cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DB.PoolMax)
	db.SetMaxIdleConns(cfg.DB.PoolMin)
	db.SetConnMaxIdleTime(cfg.DB.PoolMaxIdle.Std())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.PoolTimeout.Std())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify(err)
	}

	return &DAL{db: db, cfg: cfg, log: log}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sqlx.DB, cfg *config.Config, log *zap.Logger) *DAL {
	return &DAL{db: db, cfg: cfg, log: log}
}

// Close releases the connection pool.
func (d *DAL) Close() error {
	return d.db.Close()
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// Fatal errors and context cancellation end the attempt loop immediately.
// Only the operation name is logged, never parameter values.
func (d *DAL) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := d.cfg.DB.RetryBackoff.Std()
	var slept time.Duration

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		classified := classify(err)
		retryable := errors.Is(classified, model.ErrTransientDB) &&
			attempt < d.cfg.DB.MaxRetries &&
			slept+backoff <= maxBackoffTotal

		if !retryable {
			d.log.Error("query failed",
				zap.String("op", op),
				zap.Int("attempts", attempt+1),
				zap.Error(classified))
			return classified
		}

		d.log.Warn("transient database error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		slept += backoff
		backoff *= 2
	}
}

// classify maps a driver error onto the engine's error kinds. Context
// cancellation and already-classified errors pass through unwrapped so
// callers can detect them directly.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrTransientDB) ||
		errors.Is(err, model.ErrFatalDB) ||
		errors.Is(err, model.ErrResourceExhausted) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "53"):
			// Insufficient resources, including too_many_connections.
			return fmt.Errorf("%w: %v", model.ErrResourceExhausted, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exceptions
			pgErr.Code == "57014", // query_canceled (statement timeout)
			pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01": // deadlock_detected
			return fmt.Errorf("%w: %v", model.ErrTransientDB, err)
		default:
			return fmt.Errorf("%w: %v", model.ErrFatalDB, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", model.ErrTransientDB, err)
	}

	return fmt.Errorf("%w: %v", model.ErrFatalDB, err)
}

// annSetting returns the SET LOCAL statement tuning ANN recall for the
// configured index type. Values come from validated config, not requests.
func (d *DAL) annSetting() string {
	if d.cfg.ANN.Index == "hnsw" {
		return fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", d.cfg.ANN.EfSearch)
	}
	return fmt.Sprintf("SET LOCAL ivfflat.probes = %d", d.cfg.ANN.Probes)
}

// InTx runs fn inside a single read-only transaction so every statement of
// one retrieval observes the same snapshot. Transient failures retry the
// whole transaction.
func (d *DAL) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return d.withRetry(ctx, "retrieve", func(ctx context.Context) error {
		return d.runTx(ctx, fn)
	})
}

func (d *DAL) runTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	// Connection acquisition is bounded separately from statement
	// execution: a saturated pool is a resource problem, not a timeout.
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, d.cfg.DB.PoolTimeout.Std())
	conn, err := d.db.Connx(acquireCtx)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: connection acquisition timed out after %s",
				model.ErrResourceExhausted, d.cfg.DB.PoolTimeout.Std())
		}
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DB.QueryTimeout.Std())
	defer cancel()

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, d.annSetting()); err != nil {
		return err
	}
	if err := fn(ctx, &queries{tx: tx, cfg: d.cfg}); err != nil {
		return err
	}
	return tx.Commit()
}
