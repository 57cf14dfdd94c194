// Package scorer maps raw composite distances onto the external [0,1] score
// scale and projects store rows into the response shape.
package scorer

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"jobmatch/pkg/dal"
	"jobmatch/pkg/model"
)

// Calibrate maps a raw composite distance (ascending, smaller is closer)
// onto a descending [0,1] score. The curve is piecewise linear and monotone
// non-increasing: flat at 1.0 up to 0.7, a shallow drop to 0.98 at 0.9, a
// steeper drop to 0.90 at 0.95, then a long slope reaching 0.0 at 2.0.
// Results are rounded to four decimals and clamped to [0,1].
func Calibrate(raw float64) float64 {
	var s float64
	switch {
	case raw <= 0.7:
		s = 1.0
	case raw <= 0.9:
		s = 0.999 - 0.095*(raw-0.7)
	case raw <= 0.95:
		s = 0.98 - 1.6*(raw-0.9)
	case raw <= 2.0:
		s = 0.90 - (0.90/1.05)*(raw-0.95)
	default:
		s = 0.0
	}

	s = math.Round(s*10000) / 10000
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// ParseSkills normalizes a stored skills value into an ordered list. It
// accepts Postgres array literals like {go,sql,"data science"} as well as
// plain comma-separated strings. Tokens are trimmed and unquoted; empties
// are dropped. Parsing an already-parsed token is a no-op, so the function
// is idempotent over its own output.
func ParseSkills(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return []string{}
	}

	skills := make([]string, 0, 8)
	var b strings.Builder
	inQuotes := false
	flush := func() {
		tok := strings.TrimSpace(b.String())
		tok = strings.Trim(tok, `"`)
		if tok != "" {
			skills = append(skills, tok)
		}
		b.Reset()
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return skills
}

// Project converts store rows into the external result shape, calibrating
// each raw score. Fallback rows carry a raw score of zero and therefore
// calibrate to 1.0. Rows missing an id or title are dropped with a warning.
func Project(rows []dal.Row, log *zap.Logger) []model.JobMatch {
	matches := make([]model.JobMatch, 0, len(rows))
	for _, r := range rows {
		if !r.ID.Valid || r.ID.String == "" || !r.Title.Valid || r.Title.String == "" {
			log.Warn("discarding incomplete job row",
				zap.String("id", r.ID.String),
				zap.Bool("has_title", r.Title.Valid))
			continue
		}

		m := model.JobMatch{
			ID:               r.ID.String,
			Title:            r.Title.String,
			Description:      r.Description.String,
			ShortDescription: r.ShortDescription.String,
			Field:            r.Field.String,
			Experience:       model.Experience(r.Experience.String),
			Skills:           ParseSkills(r.Skills.String),
			Country:          r.Country.String,
			City:             r.City.String,
			CompanyName:      r.CompanyName.String,
			CompanyLogo:      r.CompanyLogo.String,
			WorkplaceType:    r.WorkplaceType.String,
			State:            model.JobState(r.State.String),
		}
		if r.Latitude.Valid && r.Longitude.Valid {
			lat, lon := r.Latitude.Float64, r.Longitude.Float64
			m.Latitude, m.Longitude = &lat, &lon
		}
		if r.PostedDate.Valid {
			t := r.PostedDate.Time
			m.PostedDate = &t
		}
		m.Score = Calibrate(r.RawScore)
		matches = append(matches, m)
	}
	return matches
}
