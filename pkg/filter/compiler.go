// Package filter compiles typed request filters into parameterized SQL
// predicate fragments. Compilation is pure: no I/O, no state.
package filter

import (
	"fmt"
	"strings"

	"jobmatch/pkg/model"
)

// Filters is the typed input to the compiler. All fields are optional.
type Filters struct {
	Location   *model.LocationFilter
	Keywords   []string
	Experience []model.Experience
	Blacklist  []string
}

// Compiled is an ordered sequence of AND-joined predicate fragments plus
// their positionally bound parameters. Placeholders are numbered $1..$n;
// the data layer appends its own parameters starting at NextArg.
type Compiled struct {
	Clauses []string
	Args    []interface{}
}

// Where returns the fragments joined with AND, without the WHERE keyword.
func (c *Compiled) Where() string {
	return strings.Join(c.Clauses, " AND ")
}

// NextArg returns the next free positional parameter index.
func (c *Compiled) NextArg() int {
	return len(c.Args) + 1
}

// Compile translates the filters into predicate fragments. The base
// fragment requiring an embedding is always emitted first.
func Compile(f Filters) (*Compiled, error) {
	c := &Compiled{
		Clauses: []string{"j.embedding IS NOT NULL"},
	}

	if f.Location != nil {
		if err := compileLocation(c, f.Location); err != nil {
			return nil, err
		}
	}
	compileKeywords(c, f.Keywords)
	compileExperience(c, f.Experience)
	compileBlacklist(c, f.Blacklist)

	return c, nil
}

func compileLocation(c *Compiled, loc *model.LocationFilter) error {
	if loc.Country != "" {
		if loc.Country == model.CountryAliasUSA {
			c.Clauses = append(c.Clauses, fmt.Sprintf("co.country_name = '%s'", model.CountryNameUS))
		} else {
			c.Clauses = append(c.Clauses, fmt.Sprintf("co.country_name = $%d", c.NextArg()))
			c.Args = append(c.Args, loc.Country)
		}
	}

	if loc.HasCoordinates() {
		radius := loc.Radius()
		if radius <= 0 {
			return fmt.Errorf("%w: radius must be positive, got %v", model.ErrValidation, radius)
		}
		// Remote jobs bypass the distance check; records with a null
		// coordinate never match it.
		latIdx := c.NextArg()
		c.Args = append(c.Args, *loc.Latitude)
		lonIdx := c.NextArg()
		c.Args = append(c.Args, *loc.Longitude)
		radIdx := c.NextArg()
		c.Args = append(c.Args, radius)
		c.Clauses = append(c.Clauses, fmt.Sprintf(
			"(l.city = '%s' OR (l.latitude IS NOT NULL AND l.longitude IS NOT NULL"+
				" AND earth_distance(ll_to_earth($%d, $%d), ll_to_earth(l.latitude, l.longitude)) <= $%d))",
			model.RemoteCity, latIdx, lonIdx, radIdx))
	} else if loc.City != "" {
		c.Clauses = append(c.Clauses, fmt.Sprintf(
			"(l.city = $%d OR l.city = '%s')", c.NextArg(), model.RemoteCity))
		c.Args = append(c.Args, loc.City)
	}

	return nil
}

func compileKeywords(c *Compiled, keywords []string) {
	var disjuncts []string

	appendTerm := func(term string) {
		idx := c.NextArg()
		c.Args = append(c.Args, "%"+escapeLike(term)+"%")
		disjuncts = append(disjuncts,
			fmt.Sprintf("(j.title ILIKE $%d OR j.description ILIKE $%d)", idx, idx))
	}

	for _, phrase := range keywords {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		appendTerm(phrase)
		// Multi-word phrases also match per token; rows hitting the full
		// phrase satisfy the token disjuncts too and rank no worse.
		tokens := strings.Fields(phrase)
		if len(tokens) > 1 {
			for _, tok := range tokens {
				appendTerm(tok)
			}
		}
	}

	if len(disjuncts) > 0 {
		c.Clauses = append(c.Clauses, "("+strings.Join(disjuncts, " OR ")+")")
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE metacharacters so a keyword matches its text
// literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func compileExperience(c *Compiled, levels []model.Experience) {
	var placeholders []string
	for _, lvl := range levels {
		if !model.KnownExperience(lvl) {
			continue
		}
		placeholders = append(placeholders, fmt.Sprintf("$%d", c.NextArg()))
		c.Args = append(c.Args, string(lvl))
	}
	if len(placeholders) > 0 {
		c.Clauses = append(c.Clauses,
			fmt.Sprintf("j.experience IN (%s)", strings.Join(placeholders, ", ")))
	}
}

func compileBlacklist(c *Compiled, ids []string) {
	if len(ids) == 0 {
		return
	}
	c.Clauses = append(c.Clauses, fmt.Sprintf("j.id <> ALL($%d::uuid[])", c.NextArg()))
	c.Args = append(c.Args, ids)
}
