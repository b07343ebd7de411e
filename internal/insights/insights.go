// Package insights derives per-course focus recommendations from grade
// standing alone. It is independent of guide generation: no generative
// model is involved and the output is stable for a given grade snapshot.
package insights

import (
	"fmt"
	"sort"

	"github.com/pavelanni/studypilot/internal/guide"
	"github.com/pavelanni/studypilot/internal/model"
)

// Score tiers. Below the low cutoff a course needs urgent attention; at or
// above the high cutoff it only needs maintenance.
const (
	lowCutoff  = 75.0
	highCutoff = 88.0
)

type tier struct {
	priority model.Priority
	trend    string
	minsWeek int
}

var tiers = map[model.Priority]tier{
	model.PriorityHigh:   {model.PriorityHigh, "declining", 180},
	model.PriorityMedium: {model.PriorityMedium, "steady", 120},
	model.PriorityLow:    {model.PriorityLow, "improving", 75},
}

func tierFor(score float64) tier {
	switch {
	case score < lowCutoff:
		return tiers[model.PriorityHigh]
	case score < highCutoff:
		return tiers[model.PriorityMedium]
	}
	return tiers[model.PriorityLow]
}

// Score converts course standings into prioritized focus recommendations,
// sorted by priority weight descending; ties keep the input course order.
// A course without a current score counts as zero, so ungraded courses
// surface at high priority instead of disappearing.
func Score(courses []model.CourseSnapshot, assignmentsByCourse map[int64][]model.AssignmentSnapshot) []model.FocusRecommendation {
	recs := []model.FocusRecommendation{}
	for _, c := range courses {
		score := courseScore(c)
		t := tierFor(score)
		recs = append(recs, model.FocusRecommendation{
			Subject:           c.Name,
			Priority:          t.priority,
			Concept:           focusConcept(assignmentsByCourse[c.ID]),
			Justification:     justification(c.Name, score, t),
			SuggestedMinsWeek: t.minsWeek,
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Weight() > recs[j].Priority.Weight()
	})
	return recs
}

// focusConcept names what to work on: the concept behind the lowest-scored
// assignment, or a generic fallback when no scored assignment exists.
func focusConcept(assignments []model.AssignmentSnapshot) string {
	var worst *model.AssignmentSnapshot
	worstPct := 0.0
	for i := range assignments {
		a := &assignments[i]
		if a.Score == nil || a.PointsPossible == nil || *a.PointsPossible <= 0 {
			continue
		}
		pct := *a.Score / *a.PointsPossible * 100
		if worst == nil || pct < worstPct {
			worst, worstPct = a, pct
		}
	}
	if worst == nil {
		return "Foundational review"
	}
	if concept := guide.InferConcept(worst.Title); concept != "" {
		return concept
	}
	return "Foundational review"
}

func justification(courseName string, score float64, t tier) string {
	switch t.priority {
	case model.PriorityHigh:
		return fmt.Sprintf("Current score in %s is %.0f%%, below passing comfort; this course needs the most attention.", courseName, score)
	case model.PriorityMedium:
		return fmt.Sprintf("Current score in %s is %.0f%%; steady work will keep it on track.", courseName, score)
	}
	return fmt.Sprintf("Current score in %s is %.0f%%; light maintenance is enough.", courseName, score)
}

// GradeSignals summarizes course standings for the dashboard. The trend
// label follows the same tiering as the recommendations, and a missing
// score counts as zero here too.
func GradeSignals(courses []model.CourseSnapshot) []model.GradeSignal {
	signals := []model.GradeSignal{}
	for _, c := range courses {
		score := courseScore(c)
		signals = append(signals, model.GradeSignal{
			CourseID:   c.ID,
			CourseName: c.Name,
			Score:      score,
			Trend:      tierFor(score).trend,
		})
	}
	return signals
}

// courseScore reads the current score, defaulting to zero when the grading
// system has not reported one yet.
func courseScore(c model.CourseSnapshot) float64 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}
