package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch/pkg/model"
)

func ptr(v float64) *float64 { return &v }

func TestSkillSection(t *testing.T) {
	e := New(nil)

	resume := &model.Resume{Skills: []string{"Go", "Docker", "Photography"}}
	job := &model.JobMatch{
		City:   "remote",
		Skills: []string{"go", "kubernetes", "cobol"},
	}

	ex := e.Explain(resume, job)
	assert.Equal(t, []string{"go"}, ex.Skills.Direct)
	assert.Equal(t, []string{"kubernetes"}, ex.Skills.Related, "docker is adjacent to kubernetes")
	assert.Equal(t, []string{"cobol"}, ex.Skills.Missing)
	assert.Contains(t, ex.Skills.Bonus, "Photography")
}

func TestSkillVerdicts(t *testing.T) {
	e := New(nil)
	tests := []struct {
		name   string
		resume []string
		job    []string
		want   model.MatchStrength
	}{
		{"all direct", []string{"go", "sql"}, []string{"go", "sql"}, model.StrengthStrong},
		{"half direct", []string{"go"}, []string{"go", "cobol"}, model.StrengthModerate},
		{"sparse", []string{"go"}, []string{"go", "cobol", "fortran", "ada"}, model.StrengthWeak},
		{"nothing", []string{"painting"}, []string{"cobol"}, model.StrengthMissing},
		{"job lists none", []string{"go"}, nil, model.StrengthMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.skillSection(tt.resume, tt.job)
			assert.Equal(t, tt.want, d.Verdict)
		})
	}
}

func TestEmptyTaxonomyDisablesRelated(t *testing.T) {
	e := New(Taxonomy{})
	d := e.skillSection([]string{"docker"}, []string{"kubernetes"})
	assert.Empty(t, d.Related)
	assert.Equal(t, []string{"kubernetes"}, d.Missing)
}

func TestExperienceSection(t *testing.T) {
	tests := []struct {
		name      string
		candidate model.Experience
		required  model.Experience
		want      model.MatchStrength
	}{
		{"exact", model.ExperienceMid, model.ExperienceMid, model.StrengthStrong},
		{"one level up", model.ExperienceMid, model.ExperienceEntry, model.StrengthModerate},
		{"one level down", model.ExperienceEntry, model.ExperienceMid, model.StrengthModerate},
		{"far apart", model.ExperienceIntern, model.ExperienceExecutive, model.StrengthWeak},
		{"unknown", "", model.ExperienceMid, model.StrengthMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := experienceSection(tt.candidate, tt.required)
			assert.Equal(t, tt.want, d.Verdict)
		})
	}
}

func TestLocationSection(t *testing.T) {
	berlin := &model.Resume{City: "Berlin", Country: "Germany",
		Latitude: ptr(52.52), Longitude: ptr(13.405)}

	t.Run("remote job is strong", func(t *testing.T) {
		d := locationSection(berlin, &model.JobMatch{City: "remote"})
		assert.True(t, d.Remote)
		assert.Equal(t, model.StrengthStrong, d.Verdict)
	})

	t.Run("same city is strong", func(t *testing.T) {
		d := locationSection(berlin, &model.JobMatch{City: "berlin", Country: "Germany"})
		assert.False(t, d.Remote)
		assert.Equal(t, model.StrengthStrong, d.Verdict)
	})

	t.Run("nearby coordinates are strong", func(t *testing.T) {
		potsdam := &model.JobMatch{City: "Potsdam", Country: "Germany",
			Latitude: ptr(52.39), Longitude: ptr(13.06)}
		d := locationSection(berlin, potsdam)
		assert.Equal(t, model.StrengthStrong, d.Verdict)
	})

	t.Run("distant coordinates are weak", func(t *testing.T) {
		munich := &model.JobMatch{City: "Munich", Country: "Germany",
			Latitude: ptr(48.14), Longitude: ptr(11.58)}
		d := locationSection(berlin, munich)
		assert.Equal(t, model.StrengthWeak, d.Verdict)
	})

	t.Run("same country without coordinates is moderate", func(t *testing.T) {
		resume := &model.Resume{City: "Hamburg", Country: "Germany"}
		d := locationSection(resume, &model.JobMatch{City: "Munich", Country: "Germany"})
		assert.Equal(t, model.StrengthModerate, d.Verdict)
	})

	t.Run("no location data is missing", func(t *testing.T) {
		d := locationSection(&model.Resume{}, &model.JobMatch{})
		assert.Equal(t, model.StrengthMissing, d.Verdict)
	})
}

func TestExplainOverallAndBullets(t *testing.T) {
	e := New(nil)
	resume := &model.Resume{
		Skills:     []string{"go", "sql"},
		Experience: model.ExperienceMid,
		City:       "Berlin",
		Country:    "Germany",
	}
	job := &model.JobMatch{
		Title:      "Backend Engineer",
		City:       "Berlin",
		Country:    "Germany",
		Experience: model.ExperienceMid,
		Skills:     []string{"go", "sql", "cobol"},
	}

	ex := e.Explain(resume, job)
	assert.Equal(t, model.StrengthStrong, ex.Overall)
	require.NotEmpty(t, ex.Highlights)
	assert.Contains(t, ex.Highlights[0], "matched directly")
	require.NotEmpty(t, ex.Concerns)
	assert.Contains(t, ex.Concerns[0], "cobol")
}
