package dal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"jobmatch/pkg/config"
	"jobmatch/pkg/filter"
	"jobmatch/pkg/model"
)

// Row is the raw projection scanned from the store. Nullable columns keep
// their sql wrappers; conversion to the external shape happens in the
// scorer's projection step.
type Row struct {
	ID               sql.NullString  `db:"id"`
	Title            sql.NullString  `db:"title"`
	Description      sql.NullString  `db:"description"`
	ShortDescription sql.NullString  `db:"short_description"`
	Field            sql.NullString  `db:"field"`
	Experience       sql.NullString  `db:"experience"`
	Skills           sql.NullString  `db:"skills"`
	Country          sql.NullString  `db:"country_name"`
	City             sql.NullString  `db:"city"`
	Latitude         sql.NullFloat64 `db:"latitude"`
	Longitude        sql.NullFloat64 `db:"longitude"`
	CompanyName      sql.NullString  `db:"company_name"`
	CompanyLogo      sql.NullString  `db:"company_logo"`
	WorkplaceType    sql.NullString  `db:"workplace_type"`
	PostedDate       sql.NullTime    `db:"posted_date"`
	State            sql.NullString  `db:"job_state"`
	RawScore         float64         `db:"raw_score"`
}

// Querier is the query surface available inside one read-only transaction.
// All statements issued through it observe a single snapshot, so the count
// that picks the retrieval path and the fetch that serves the page can
// never disagree.
type Querier interface {
	CountJobs(ctx context.Context, f *filter.Compiled) (int, error)
	FetchFallback(ctx context.Context, f *filter.Compiled, limit int) ([]Row, error)
	SearchByVector(ctx context.Context, embedding []float32, f *filter.Compiled, limit, offset int) ([]Row, error)
}

// queries implements Querier over an open transaction.
type queries struct {
	tx  *sqlx.Tx
	cfg *config.Config
}

const jobColumns = `j.id, j.title, j.description, j.short_description, j.field,
	j.experience, j.skills, co.country_name, l.city, l.latitude, l.longitude,
	c.company_name, c.company_logo, j.workplace_type, j.posted_date, j.job_state`

const jobJoins = `FROM jobs j
	LEFT JOIN companies c ON c.id = j.company_id
	LEFT JOIN locations l ON l.id = j.location_id
	LEFT JOIN countries co ON co.id = l.country_id`

// activePredicate scopes every query to live postings.
const activePredicate = `j.job_state = 'Active'`

// CountJobs returns the number of active jobs matching the compiled filters.
func (q *queries) CountJobs(ctx context.Context, f *filter.Compiled) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s AND %s",
		jobJoins, activePredicate, f.Where())

	var count int
	if err := q.tx.GetContext(ctx, &count, query, f.Args...); err != nil {
		return 0, err
	}
	return count, nil
}

// FetchFallback returns up to limit matching jobs by recency with a zero raw
// score. Used when the filtered pool is too small for vector ranking.
func (q *queries) FetchFallback(ctx context.Context, f *filter.Compiled, limit int) ([]Row, error) {
	limitIdx := f.NextArg()
	query := fmt.Sprintf(
		"SELECT %s, 0::float8 AS raw_score %s WHERE %s AND %s"+
			" ORDER BY j.posted_date DESC NULLS LAST, j.id LIMIT $%d",
		jobColumns, jobJoins, activePredicate, f.Where(), limitIdx)
	args := append(append([]interface{}{}, f.Args...), limit)

	var rows []Row
	if err := q.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// vectorQuery computes three pgvector distances against a single embedding
// parameter, min-max normalizes each over the filtered pool with window
// functions, and orders by the weighted composite. Every parameter binds
// exactly once; the embedding placeholder is referenced three times.
const vectorQuery = `WITH scored AS (
	SELECT %s,
		j.embedding <=> $%[2]d AS cos_dist,
		j.embedding <-> $%[2]d AS l2_dist,
		j.embedding <#> $%[2]d AS ip_dist
	%[3]s
	WHERE %[4]s AND %[5]s
), ranged AS (
	SELECT *,
		MIN(cos_dist) OVER () AS min_cos, MAX(cos_dist) OVER () AS max_cos,
		MIN(l2_dist) OVER () AS min_l2, MAX(l2_dist) OVER () AS max_l2,
		MIN(ip_dist) OVER () AS min_ip, MAX(ip_dist) OVER () AS max_ip
	FROM scored
)
SELECT id, title, description, short_description, field,
	experience, skills, country_name, city, latitude, longitude,
	company_name, company_logo, workplace_type, posted_date, job_state,
	0.4 * CASE WHEN max_cos > min_cos THEN (cos_dist - min_cos) / (max_cos - min_cos) ELSE 0 END
	+ 0.4 * CASE WHEN max_l2 > min_l2 THEN (l2_dist - min_l2) / (max_l2 - min_l2) ELSE 0 END
	+ 0.2 * CASE WHEN max_ip > min_ip THEN (ip_dist - min_ip) / (max_ip - min_ip) ELSE 0 END
	AS raw_score
FROM ranged
ORDER BY raw_score, cos_dist, id
LIMIT $%[6]d OFFSET $%[7]d`

// SearchByVector ranks matching jobs by composite embedding distance. The
// raw score is ascending: smaller means closer.
func (q *queries) SearchByVector(ctx context.Context, embedding []float32, f *filter.Compiled, limit, offset int) ([]Row, error) {
	if want := q.cfg.Embedding.Dimension; len(embedding) != want {
		return nil, fmt.Errorf("%w: embedding dimension %d, want %d",
			model.ErrValidation, len(embedding), want)
	}

	embIdx := f.NextArg()
	query := fmt.Sprintf(vectorQuery,
		jobColumns, embIdx, jobJoins, activePredicate, f.Where(), embIdx+1, embIdx+2)
	args := append(append([]interface{}{}, f.Args...),
		pgvector.NewVector(embedding), limit, offset)

	var rows []Row
	if err := q.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
