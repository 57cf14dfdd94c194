package explain

import "strings"

// Taxonomy maps a skill to the skills considered adjacent to it. Lookups
// are case-insensitive and symmetric: an edge in either direction counts.
type Taxonomy map[string][]string

// DefaultTaxonomy is the built-in adjacency map used when no custom
// taxonomy is configured.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		"go":               {"golang", "rust", "c"},
		"golang":           {"go"},
		"python":           {"data science", "machine learning", "pandas", "numpy"},
		"java":             {"kotlin", "scala", "spring"},
		"javascript":       {"typescript", "react", "node.js", "vue"},
		"typescript":       {"javascript", "react", "angular"},
		"react":            {"javascript", "typescript", "next.js"},
		"sql":              {"postgresql", "mysql", "database design"},
		"postgresql":       {"sql", "mysql"},
		"docker":           {"kubernetes", "containers", "ci/cd"},
		"kubernetes":       {"docker", "helm", "devops"},
		"aws":              {"gcp", "azure", "cloud architecture", "terraform"},
		"gcp":              {"aws", "azure"},
		"terraform":        {"aws", "infrastructure as code", "ansible"},
		"machine learning": {"deep learning", "python", "data science", "pytorch", "tensorflow"},
		"data science":     {"python", "machine learning", "statistics", "sql"},
		"devops":           {"ci/cd", "kubernetes", "terraform", "linux"},
		"linux":            {"bash", "devops"},
	}
}

// related reports whether a and b are adjacent in the taxonomy.
func (t Taxonomy) related(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for _, n := range t[a] {
		if strings.EqualFold(n, b) {
			return true
		}
	}
	for _, n := range t[b] {
		if strings.EqualFold(n, a) {
			return true
		}
	}
	return false
}
