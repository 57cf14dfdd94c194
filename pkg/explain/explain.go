// Package explain derives a structured, human-readable explanation for a
// single match. It is pure computation over the request and the result
// record; nothing here touches the network or the stores.
package explain

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"jobmatch/pkg/model"
)

// Distance bands for the location verdict, in meters.
const (
	nearbyDistance  = 50_000
	commuteDistance = 200_000
)

// Explainer builds match explanations against a skill taxonomy.
type Explainer struct {
	taxonomy Taxonomy
}

// New builds an Explainer. A nil taxonomy selects the built-in default.
func New(taxonomy Taxonomy) *Explainer {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &Explainer{taxonomy: taxonomy}
}

// Explain compares the resume against one job and returns the structured
// verdicts plus highlight and concern bullets.
func (e *Explainer) Explain(resume *model.Resume, job *model.JobMatch) *model.MatchExplanation {
	ex := &model.MatchExplanation{
		Skills:     e.skillSection(resume.Skills, job.Skills),
		Experience: experienceSection(resume.Experience, job.Experience),
		Location:   locationSection(resume, job),
	}
	ex.Overall = overall(ex)
	ex.Highlights, ex.Concerns = bullets(ex, job)
	return ex
}

func (e *Explainer) skillSection(resumeSkills, jobSkills []string) model.SkillMatchDetail {
	d := model.SkillMatchDetail{
		Direct:  []string{},
		Missing: []string{},
		Related: []string{},
		Bonus:   []string{},
	}
	if len(jobSkills) == 0 {
		d.Verdict = model.StrengthMissing
		return d
	}

	has := func(list []string, s string) bool {
		for _, v := range list {
			if strings.EqualFold(v, s) {
				return true
			}
		}
		return false
	}

	for _, js := range jobSkills {
		switch {
		case has(resumeSkills, js):
			d.Direct = append(d.Direct, js)
		case e.relatedToAny(resumeSkills, js):
			d.Related = append(d.Related, js)
		default:
			d.Missing = append(d.Missing, js)
		}
	}
	for _, rs := range resumeSkills {
		if !has(jobSkills, rs) {
			d.Bonus = append(d.Bonus, rs)
		}
	}

	coverage := (float64(len(d.Direct)) + 0.5*float64(len(d.Related))) / float64(len(jobSkills))
	switch {
	case coverage >= 0.7:
		d.Verdict = model.StrengthStrong
	case coverage >= 0.4:
		d.Verdict = model.StrengthModerate
	case coverage > 0:
		d.Verdict = model.StrengthWeak
	default:
		d.Verdict = model.StrengthMissing
	}
	return d
}

func (e *Explainer) relatedToAny(resumeSkills []string, jobSkill string) bool {
	for _, rs := range resumeSkills {
		if e.taxonomy.related(rs, jobSkill) {
			return true
		}
	}
	return false
}

// levelRank orders the canonical experience levels for adjacency checks.
var levelRank = map[model.Experience]int{
	model.ExperienceIntern:    0,
	model.ExperienceEntry:     1,
	model.ExperienceMid:       2,
	model.ExperienceExecutive: 3,
}

func experienceSection(candidate, required model.Experience) model.ExperienceMatchDetail {
	d := model.ExperienceMatchDetail{Required: required, Candidate: candidate}

	cr, cok := levelRank[candidate]
	rr, rok := levelRank[required]
	switch {
	case !cok || !rok:
		d.Verdict = model.StrengthMissing
	case cr == rr:
		d.Verdict = model.StrengthStrong
	case cr-rr == 1 || rr-cr == 1:
		d.Verdict = model.StrengthModerate
	default:
		d.Verdict = model.StrengthWeak
	}
	return d
}

func locationSection(resume *model.Resume, job *model.JobMatch) model.LocationMatchDetail {
	d := model.LocationMatchDetail{
		JobLocation:       joinPlace(job.City, job.Country),
		CandidateLocation: joinPlace(resume.City, resume.Country),
	}

	if strings.EqualFold(job.City, model.RemoteCity) {
		d.Remote = true
		d.Verdict = model.StrengthStrong
		return d
	}
	if resume.City != "" && strings.EqualFold(resume.City, job.City) {
		d.Verdict = model.StrengthStrong
		return d
	}
	if resume.Latitude != nil && resume.Longitude != nil &&
		job.Latitude != nil && job.Longitude != nil {
		meters := geo.Distance(
			orb.Point{*resume.Longitude, *resume.Latitude},
			orb.Point{*job.Longitude, *job.Latitude})
		switch {
		case meters <= nearbyDistance:
			d.Verdict = model.StrengthStrong
		case meters <= commuteDistance:
			d.Verdict = model.StrengthModerate
		default:
			d.Verdict = model.StrengthWeak
		}
		return d
	}
	if resume.Country != "" && strings.EqualFold(resume.Country, job.Country) {
		d.Verdict = model.StrengthModerate
		return d
	}
	if d.JobLocation == "" || d.CandidateLocation == "" {
		d.Verdict = model.StrengthMissing
		return d
	}
	d.Verdict = model.StrengthWeak
	return d
}

func joinPlace(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

// strengthPoints weighs the section verdicts into the overall call. Skills
// dominate; experience and location split the rest.
var strengthPoints = map[model.MatchStrength]float64{
	model.StrengthStrong:   3,
	model.StrengthModerate: 2,
	model.StrengthWeak:     1,
	model.StrengthMissing:  0,
}

func overall(ex *model.MatchExplanation) model.MatchStrength {
	score := 0.5*strengthPoints[ex.Skills.Verdict] +
		0.25*strengthPoints[ex.Experience.Verdict] +
		0.25*strengthPoints[ex.Location.Verdict]
	switch {
	case score >= 2.5:
		return model.StrengthStrong
	case score >= 1.5:
		return model.StrengthModerate
	case score > 0:
		return model.StrengthWeak
	}
	return model.StrengthMissing
}

func bullets(ex *model.MatchExplanation, job *model.JobMatch) (highlights, concerns []string) {
	if n := len(ex.Skills.Direct); n > 0 {
		highlights = append(highlights,
			fmt.Sprintf("%d required skill(s) matched directly: %s",
				n, strings.Join(ex.Skills.Direct, ", ")))
	}
	if n := len(ex.Skills.Related); n > 0 {
		highlights = append(highlights,
			fmt.Sprintf("%d required skill(s) covered by related experience: %s",
				n, strings.Join(ex.Skills.Related, ", ")))
	}
	if ex.Location.Remote {
		highlights = append(highlights, "position is remote")
	} else if ex.Location.Verdict == model.StrengthStrong {
		highlights = append(highlights, "location matches: "+ex.Location.JobLocation)
	}
	if ex.Experience.Verdict == model.StrengthStrong {
		highlights = append(highlights,
			"experience level matches: "+string(ex.Experience.Required))
	}

	if n := len(ex.Skills.Missing); n > 0 {
		concerns = append(concerns,
			fmt.Sprintf("%d required skill(s) not found on the resume: %s",
				n, strings.Join(ex.Skills.Missing, ", ")))
	}
	if ex.Experience.Verdict == model.StrengthWeak {
		concerns = append(concerns, fmt.Sprintf(
			"experience gap: role asks for %s, resume shows %s",
			ex.Experience.Required, ex.Experience.Candidate))
	}
	if ex.Location.Verdict == model.StrengthWeak {
		concerns = append(concerns,
			"job location "+ex.Location.JobLocation+" is far from the candidate")
	}
	return highlights, concerns
}
