// Package model holds the domain types shared across the matching pipeline.
package model

import (
	"time"
)

// Experience is the canonical experience-level enumeration.
type Experience string

// Canonical experience levels.
const (
	ExperienceIntern    Experience = "Intern"
	ExperienceEntry     Experience = "Entry"
	ExperienceMid       Experience = "Mid"
	ExperienceExecutive Experience = "Executive"
)

// KnownExperience reports whether e is one of the canonical levels.
func KnownExperience(e Experience) bool {
	switch e {
	case ExperienceIntern, ExperienceEntry, ExperienceMid, ExperienceExecutive:
		return true
	}
	return false
}

// JobState is the lifecycle state of a job posting.
type JobState string

// Job lifecycle states.
const (
	JobStateActive  JobState = "Active"
	JobStateFilled  JobState = "Filled"
	JobStateExpired JobState = "Expired"
)

// RemoteCity is the literal city token marking location-agnostic jobs.
// A job located in RemoteCity passes any city filter.
const RemoteCity = "remote"

// CountryAliasUSA maps the request token "USA" onto the canonical name
// stored in the countries table.
const (
	CountryAliasUSA = "USA"
	CountryNameUS   = "United States"
)

// Resume is the candidate profile driving a match request. The embedding is
// produced externally; the engine consumes it read-only.
type Resume struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id,omitempty"`
	Headline   string     `json:"headline,omitempty"`
	Skills     []string   `json:"skills,omitempty"`
	Experience Experience `json:"experience,omitempty"`
	City       string     `json:"city,omitempty"`
	Country    string     `json:"country,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// LocationFilter restricts matches geographically. When RadiusMeters is set
// it is used directly, otherwise RadiusKm is converted; the city clause only
// applies when no coordinate pair is given.
type LocationFilter struct {
	Country      string   `json:"country,omitempty"`
	City         string   `json:"city,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusKm     float64  `json:"radius_km,omitempty"`
	RadiusMeters float64  `json:"radius_meters,omitempty"`
}

// Radius returns the canonical radius in meters.
func (l *LocationFilter) Radius() float64 {
	if l.RadiusMeters > 0 {
		return l.RadiusMeters
	}
	return l.RadiusKm * 1000
}

// HasCoordinates reports whether a full coordinate pair was supplied.
func (l *LocationFilter) HasCoordinates() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// MatchRequest is the inbound request shape consumed by the pipeline.
type MatchRequest struct {
	Resume     Resume          `json:"resume" validate:"required"`
	Location   *LocationFilter `json:"location,omitempty"`
	Keywords   []string        `json:"keywords,omitempty"`
	Experience []Experience    `json:"experience,omitempty"`
	Offset     int             `json:"offset" validate:"min=0"`
	Limit      int             `json:"limit" validate:"min=1,max=100"`

	UseCache          bool `json:"use_cache"`
	SaveToCache       bool `json:"save_to_cache"`
	IncludeTotalCount bool `json:"include_total_count"`
	EnableRerank      bool `json:"enable_rerank"`
	EnableExplain     bool `json:"enable_explain"`
}

// JobMatch is the externally visible result record. The apply link and
// source portal are deliberately absent from this projection.
type JobMatch struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	ShortDescription string            `json:"short_description,omitempty"`
	Field            string            `json:"field,omitempty"`
	Experience       Experience        `json:"experience,omitempty"`
	Skills           []string          `json:"skills"`
	Country          string            `json:"country,omitempty"`
	City             string            `json:"city,omitempty"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	CompanyName      string            `json:"company_name,omitempty"`
	CompanyLogo      string            `json:"company_logo,omitempty"`
	WorkplaceType    string            `json:"workplace_type,omitempty"`
	PostedDate       *time.Time        `json:"posted_date,omitempty"`
	State            JobState          `json:"job_state,omitempty"`
	Score            float64           `json:"score"`
	CrossScore       *float64          `json:"cross_score,omitempty"`
	Explanation      *MatchExplanation `json:"explanation,omitempty"`
}

// MatchResponse is the outbound response shape.
type MatchResponse struct {
	Jobs       []JobMatch `json:"jobs"`
	TotalCount *int       `json:"total_count,omitempty"`
}

// MatchStrength is the coarse verdict used by explanations.
type MatchStrength string

// Explanation strength tags.
const (
	StrengthStrong   MatchStrength = "Strong"
	StrengthModerate MatchStrength = "Moderate"
	StrengthWeak     MatchStrength = "Weak"
	StrengthMissing  MatchStrength = "Missing"
)

// SkillMatchDetail describes how the candidate's skills line up with a job.
type SkillMatchDetail struct {
	Direct  []string      `json:"direct"`
	Missing []string      `json:"missing"`
	Related []string      `json:"related"`
	Bonus   []string      `json:"bonus"`
	Verdict MatchStrength `json:"verdict"`
}

// ExperienceMatchDetail compares required and candidate experience levels.
type ExperienceMatchDetail struct {
	Required  Experience    `json:"required"`
	Candidate Experience    `json:"candidate"`
	Verdict   MatchStrength `json:"verdict"`
}

// LocationMatchDetail compares job and candidate locations.
type LocationMatchDetail struct {
	JobLocation       string        `json:"job_location"`
	CandidateLocation string        `json:"candidate_location"`
	Remote            bool          `json:"remote"`
	Verdict           MatchStrength `json:"verdict"`
}

// MatchExplanation is the structured per-result explanation.
type MatchExplanation struct {
	Skills     SkillMatchDetail      `json:"skills"`
	Experience ExperienceMatchDetail `json:"experience"`
	Location   LocationMatchDetail   `json:"location"`
	Overall    MatchStrength         `json:"overall"`
	Highlights []string              `json:"highlights,omitempty"`
	Concerns   []string              `json:"concerns,omitempty"`
}
