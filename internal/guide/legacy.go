package guide

import (
	"fmt"
	"strings"

	"github.com/pavelanni/studypilot/internal/model"
)

// genericTopics are labels too vague to headline a legacy outline; a whole
// subject name tells the older client nothing about what to study.
var genericTopics = map[string]bool{
	"algebra": true, "math": true, "mathematics": true, "science": true,
	"general": true, "misc": true, "other": true, "course": true,
	"class": true, "school": true,
}

const maxLegacyPriorities = 3

// ToLegacy projects a canonical document into the flattened shape the older
// client consumes. The projection is deterministic: the same document and
// prompt always produce the same legacy guide.
func ToLegacy(doc *model.GuideDocument, userPrompt string) *model.LegacyGuide {
	legacy := &model.LegacyGuide{
		Overview:   doc.StudyGuide.Overview.Summary,
		WeeklyPlan: buildWeeklyPlan(doc),
		Priorities: buildPriorities(doc),
		Checklist:  buildLegacyChecklist(doc),
	}

	topic := legacyTopic(doc, userPrompt)
	concepts := legacyConcepts(doc)
	legacy.TopicOutline = &model.TopicOutline{Topic: topic, Concepts: concepts}
	return legacy
}

// legacyTopic picks the outline headline. Candidate sources are tried in
// order and each is filtered for generic subject words before falling
// through: practice set topics, diagnostic topics, final review topics,
// scope labels, the student's own prompt, and finally a fixed placeholder.
func legacyTopic(doc *model.GuideDocument, userPrompt string) string {
	var sources [][]string

	for _, s := range doc.StudyGuide.Sections {
		if s.PracticeSets != nil {
			var topics []string
			for _, set := range s.PracticeSets.Sets {
				topics = append(topics, set.Topic)
			}
			sources = append(sources, topics)
		}
	}
	for _, s := range doc.StudyGuide.Sections {
		if s.Diagnostic != nil {
			var topics []string
			for _, q := range s.Diagnostic.Questions {
				topics = append(topics, q.Topic)
			}
			sources = append(sources, topics)
		}
	}
	for _, s := range doc.StudyGuide.Sections {
		if s.FinalReview != nil {
			sources = append(sources, s.FinalReview.Topics)
		}
	}
	var labels []string
	for _, t := range doc.ScopeLock.Topics {
		labels = append(labels, t.Label)
	}
	sources = append(sources, labels)

	for _, source := range sources {
		for _, candidate := range source {
			trimmed := strings.TrimSpace(candidate)
			if trimmed == "" || genericTopics[strings.ToLower(trimmed)] {
				continue
			}
			return trimmed
		}
	}

	if prompt := strings.TrimSpace(userPrompt); prompt != "" {
		return prompt
	}
	return "current quiz topic"
}

func legacyConcepts(doc *model.GuideDocument) []string {
	for _, s := range doc.StudyGuide.Sections {
		if s.MustKnowMap == nil {
			continue
		}
		concepts := make([]string, 0, len(s.MustKnowMap.Items))
		for _, item := range s.MustKnowMap.Items {
			concepts = append(concepts, item.Concept)
		}
		if len(concepts) > 0 {
			return concepts
		}
	}
	concepts := []string{}
	for _, t := range doc.ScopeLock.Topics {
		concepts = append(concepts, t.Label)
	}
	return concepts
}

// buildWeeklyPlan emits the fixed two-day plan the legacy client renders:
// concept work on Monday, practice and review on Wednesday.
func buildWeeklyPlan(doc *model.GuideDocument) []model.PlanDay {
	minutes := doc.StudyGuide.Overview.EstimatedMinutes / 2
	if minutes <= 0 {
		minutes = 45
	}

	monday := model.PlanDay{Day: "Monday", Minutes: minutes}
	wednesday := model.PlanDay{Day: "Wednesday", Minutes: minutes}

	for i, t := range doc.ScopeLock.Topics {
		task := fmt.Sprintf("Review %s and its key examples.", t.Label)
		if i%2 == 0 {
			monday.Tasks = append(monday.Tasks, task)
		} else {
			wednesday.Tasks = append(wednesday.Tasks, task)
		}
	}
	if len(monday.Tasks) == 0 {
		monday.Tasks = []string{"Review your class notes and highlight anything unclear."}
	}
	wednesday.Tasks = append(wednesday.Tasks, "Work one timed practice round and check your answers.")

	return []model.PlanDay{monday, wednesday}
}

// buildPriorities keeps the top scored topics, at most three.
func buildPriorities(doc *model.GuideDocument) []model.LegacyPriority {
	priorities := []model.LegacyPriority{}
	for _, t := range doc.ScopeLock.Topics {
		if len(priorities) == maxLegacyPriorities {
			break
		}
		priorities = append(priorities, model.LegacyPriority{
			Subject: t.Label,
			Reason:  t.Justification,
			Action:  fmt.Sprintf("Work the practice set for %s.", t.Label),
		})
	}
	return priorities
}

func buildLegacyChecklist(doc *model.GuideDocument) []string {
	tasks := []string{}
	for _, item := range doc.Checklist {
		tasks = append(tasks, item.Task)
	}
	if len(tasks) == 0 {
		tasks = append(tasks, "Review your notes and redo one recent problem set.")
	}
	return tasks
}
