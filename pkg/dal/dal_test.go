package dal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmatch/pkg/config"
	"jobmatch/pkg/filter"
	"jobmatch/pkg/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DB.RetryBackoff = config.Duration(time.Millisecond)
	cfg.DB.MaxRetries = 2
	cfg.DB.QueryTimeout = config.Duration(time.Second)
	cfg.Embedding.Dimension = 3
	return cfg
}

func testDAL(t *testing.T) (*DAL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "sqlmock"), testConfig(), zap.NewNop()), mock
}

func emptyFilter(t *testing.T) *filter.Compiled {
	t.Helper()
	f, err := filter.Compile(filter.Filters{})
	require.NoError(t, err)
	return f
}

// expectTxStart registers the transaction prologue every retrieval runs:
// begin plus the ANN recall setting.
func expectTxStart(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL ivfflat.probes = 10")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestCountJobs(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectCommit()

	var count int
	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		var err error
		count, err = q.CountJobs(ctx, emptyFilter(t))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxSharesOneTransaction(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectQuery(regexp.QuoteMeta("j.embedding <=> $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "raw_score"}).
			AddRow("j-1", "Engineer", 0.35))
	mock.ExpectCommit()

	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		if _, err := q.CountJobs(ctx, emptyFilter(t)); err != nil {
			return err
		}
		_, err := q.SearchByVector(ctx, []float32{0.1, 0.2, 0.3}, emptyFilter(t), 10, 0)
		return err
	})
	require.NoError(t, err)
	// A single begin/commit pair covered both statements.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRetriesTransient(t *testing.T) {
	d, mock := testDAL(t)

	// First attempt fails mid-transaction and rolls back; the whole
	// transaction is retried from the top.
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnError(io.EOF)
	mock.ExpectRollback()
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectCommit()

	var count int
	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		var err error
		count, err = q.CountJobs(ctx, emptyFilter(t))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxFatalNotRetried(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})
	mock.ExpectRollback()

	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.CountJobs(ctx, emptyFilter(t))
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFatalDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxServerPoolExhaustion(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnError(&pgconn.PgError{Code: "53300", Message: "too many connections"})
	mock.ExpectRollback()

	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.CountJobs(ctx, emptyFilter(t))
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrResourceExhausted))
}

func TestInTxAcquisitionTimeout(t *testing.T) {
	d, _ := testDAL(t)
	d.db.SetMaxOpenConns(1)
	d.cfg.DB.PoolTimeout = config.Duration(10 * time.Millisecond)

	// Hold the pool's only connection so acquisition must wait out the
	// pool timeout.
	held, err := d.db.Connx(context.Background())
	require.NoError(t, err)
	defer held.Close()

	err = d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		t.Fatal("transaction body must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrResourceExhausted))
}

func TestFetchFallback(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectQuery(regexp.QuoteMeta("0::float8 AS raw_score")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "raw_score"}).
			AddRow("j-1", "Engineer", 0.0).
			AddRow("j-2", "Analyst", 0.0))
	mock.ExpectCommit()

	var rows []Row
	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		var err error
		rows, err = q.FetchFallback(ctx, emptyFilter(t), 5)
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "j-1", rows[0].ID.String)
	assert.Zero(t, rows[0].RawScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByVectorDimensionMismatch(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	mock.ExpectRollback()

	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.SearchByVector(ctx, []float32{0.1}, emptyFilter(t), 10, 0)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestSearchByVector(t *testing.T) {
	d, mock := testDAL(t)
	expectTxStart(mock)
	// With no filters the embedding binds once as $1 and is referenced by
	// all three distance operators; limit and offset follow.
	mock.ExpectQuery(regexp.QuoteMeta("j.embedding <=> $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "raw_score"}).
			AddRow("j-1", "Engineer", 0.35).
			AddRow("j-2", "Analyst", 0.82))
	mock.ExpectCommit()

	var rows []Row
	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		var err error
		rows, err = q.SearchByVector(ctx, []float32{0.1, 0.2, 0.3}, emptyFilter(t), 10, 0)
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.35, rows[0].RawScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByVectorHNSW(t *testing.T) {
	d, mock := testDAL(t)
	d.cfg.ANN.Index = "hnsw"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL hnsw.ef_search = 100")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`WITH scored AS`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "raw_score"}))
	mock.ExpectCommit()

	err := d.InTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.SearchByVector(ctx, []float32{0.1, 0.2, 0.3}, emptyFilter(t), 10, 0)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"connection exception", &pgconn.PgError{Code: "08006"}, model.ErrTransientDB},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, model.ErrTransientDB},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, model.ErrTransientDB},
		{"syntax error", &pgconn.PgError{Code: "42601"}, model.ErrFatalDB},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, model.ErrFatalDB},
		{"too many connections", &pgconn.PgError{Code: "53300"}, model.ErrResourceExhausted},
		{"eof", io.EOF, model.ErrTransientDB},
		{"cancellation passes through", context.Canceled, context.Canceled},
		{"validation passes through", fmt.Errorf("search: %w", model.ErrValidation), model.ErrValidation},
		{"exhaustion passes through", fmt.Errorf("acquire: %w", model.ErrResourceExhausted), model.ErrResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(classify(tt.err), tt.want))
		})
	}
}
