package guide

import (
	"fmt"
	"strings"

	"github.com/pavelanni/studypilot/internal/model"
)

// Per-badge study-time budgets for UI hints, in minutes.
var badgeBudgets = map[model.Badge]int{
	model.BadgeConfirmed: 45,
	model.BadgeLikely:    30,
	model.BadgeMayNot:    20,
}

// BuildFallback computes the deterministic local guide document from the
// topic scope and gathered evidence alone. It is both the safety net when
// the generative collaborator fails and the merge base for normalization.
func BuildFallback(req model.GuideRequest, gather *model.GatherResult, topics []model.Topic) *model.GuideDocument {
	doc := &model.GuideDocument{
		Status: model.StatusReady,
		Meta: model.GuideMeta{
			Assumptions: []string{},
			SourcesUsed: sourcesUsed(gather),
		},
		ScopeLock: model.ScopeLock{
			Topics:     topics,
			OutOfScope: []string{},
		},
	}

	courseName := ""
	if gather != nil && gather.Course != nil {
		doc.Meta.CourseID = gather.Course.ID
		doc.Meta.CourseName = gather.Course.Name
		courseName = gather.Course.Name
	}
	if gather != nil && gather.Assessment != nil {
		a := gather.Assessment
		doc.Meta.Assessment = model.AssessmentMeta{
			ID:     a.ID,
			Title:  a.Title,
			Format: model.AssessmentFormat{Kind: string(a.Kind)},
		}
		if a.DueAt != nil {
			doc.Meta.Assessment.DueDate = a.DueAt.Format("2006-01-02")
		}
		if a.TimeLimitMin != nil {
			doc.Meta.Assessment.Format.TimeLimitMin = *a.TimeLimitMin
		}
		if a.AllowedAttempts != nil {
			doc.Meta.Assessment.Format.AllowedAttempts = *a.AllowedAttempts
		}
	}

	doc.Meta.Confidence = fallbackConfidence(gather, topics)
	doc.Meta.Assumptions = fallbackAssumptions(gather)

	labels := topicLabels(topics)
	doc.StudyGuide = buildStudyGuide(courseName, doc.Meta.Assessment.Title, topics, labels)
	doc.Checklist = buildChecklist(topics)
	doc.TutorHandoff = buildTutorHandoff(doc.Meta, labels)
	doc.UIHints = buildUIHints(topics, labels)
	return doc
}

func sourcesUsed(gather *model.GatherResult) model.SourcesUsed {
	var s model.SourcesUsed
	if gather == nil {
		return s
	}
	if gather.Assessment != nil && gather.Assessment.Kind == model.AssessmentQuiz {
		s.Quizzes = 1
	}
	s.Assignments = len(gather.Assignments)
	if gather.Materials.ModuleName != "" {
		s.Modules = 1
	}
	s.Pages = len(gather.Materials.Pages)
	s.Announcements = len(gather.Materials.Announcements)
	s.Files = len(gather.Materials.Files)
	return s
}

// fallbackConfidence maps the strength of gathered evidence onto 0-100.
func fallbackConfidence(gather *model.GatherResult, topics []model.Topic) int {
	confidence := 35
	if gather != nil && gather.Assessment != nil {
		confidence += 25
	}
	for _, t := range topics {
		if t.Badge == model.BadgeConfirmed {
			confidence += 15
			break
		}
	}
	if gather != nil && len(gather.WeakSignals) > 0 {
		confidence += 10
	}
	if confidence > 90 {
		confidence = 90
	}
	return confidence
}

func fallbackAssumptions(gather *model.GatherResult) []string {
	assumptions := []string{}
	if gather == nil || gather.Assessment == nil {
		assumptions = append(assumptions, "No upcoming assessment was identified; the scope is inferred from the course and your question.")
	}
	if gather != nil {
		assumptions = append(assumptions, gather.Uncertainties...)
	}
	return assumptions
}

func topicLabels(topics []model.Topic) []string {
	labels := make([]string, 0, len(topics))
	for _, t := range topics {
		labels = append(labels, t.Label)
	}
	return labels
}

func topN(labels []string, n int) []string {
	if len(labels) > n {
		return labels[:n]
	}
	return labels
}

func buildStudyGuide(courseName, assessmentTitle string, topics []model.Topic, labels []string) model.StudyGuide {
	subject := courseName
	if subject == "" {
		subject = "your course"
	}
	target := assessmentTitle
	if target == "" {
		target = "the upcoming assessment"
	}

	mustKnow := &model.MustKnowSection{Title: "Must-know concepts", Items: []model.MustKnowItem{}}
	for _, t := range topics {
		mustKnow.Items = append(mustKnow.Items, model.MustKnowItem{
			Concept: t.Label,
			Why:     t.Justification,
		})
	}

	diagnostic := &model.DiagnosticSection{Title: "Quick self-check", Questions: []model.DiagnosticQuestion{}}
	for _, label := range topN(labels, 3) {
		diagnostic.Questions = append(diagnostic.Questions, model.DiagnosticQuestion{
			Prompt: fmt.Sprintf("Without notes, outline the key ideas of %s.", label),
			Answer: fmt.Sprintf("Compare your outline against the %s material in your course.", label),
			Topic:  label,
		})
	}

	practice := &model.PracticeSetsSection{Title: "Practice sets", Sets: []model.PracticeSet{}}
	for _, label := range topN(labels, 3) {
		practice.Sets = append(practice.Sets, model.PracticeSet{
			Topic: label,
			Problems: []string{
				fmt.Sprintf("Work two problems on %s from your latest homework.", label),
				fmt.Sprintf("Redo one %s example from class without looking at the solution.", label),
			},
		})
	}

	memory := &model.MemorySpeedSection{Title: "Memory and speed", Drills: []string{}, Mnemonics: []string{}}
	for _, label := range topN(labels, 3) {
		memory.Drills = append(memory.Drills, fmt.Sprintf("Two-minute recall drill: write everything you know about %s.", label))
	}

	finalReview := &model.FinalReviewSection{
		Title:  "Final review",
		Steps:  []string{},
		Topics: append([]string{}, labels...),
	}
	finalReview.Steps = append(finalReview.Steps,
		fmt.Sprintf("Skim your notes for %s one last time.", subject),
		fmt.Sprintf("Re-try the hardest problem you missed before %s.", target),
		"Get a full night's sleep.",
	)

	return model.StudyGuide{
		Overview: model.GuideOverview{
			Summary: fmt.Sprintf("A focused plan for %s covering %s.",
				target, strings.Join(topN(labels, 3), ", ")),
			EstimatedMinutes: 25 * len(topics),
		},
		Sections: []model.GuideSection{
			{ID: model.SectionMustKnowMap, MustKnowMap: mustKnow},
			{ID: model.SectionDiagnostic, Diagnostic: diagnostic},
			{ID: model.SectionPracticeSets, PracticeSets: practice},
			{ID: model.SectionMemoryAndSpeed, MemoryAndSpeed: memory},
			{ID: model.SectionFinalReview, FinalReview: finalReview},
		},
	}
}

func buildChecklist(topics []model.Topic) []model.ChecklistItem {
	items := []model.ChecklistItem{}
	for i, t := range topics {
		items = append(items, model.ChecklistItem{
			ID:        fmt.Sprintf("chk-%d", i+1),
			Task:      fmt.Sprintf("Review %s and work its practice set.", t.Label),
			Badge:     t.Badge,
			DoneWhen:  fmt.Sprintf("You can solve a %s problem without notes.", t.Label),
			SectionID: model.SectionPracticeSets,
		})
	}
	return items
}

func buildTutorHandoff(meta model.GuideMeta, labels []string) model.TutorHandoff {
	brief := "The student is preparing"
	if meta.Assessment.Title != "" {
		brief += " for " + meta.Assessment.Title
	}
	if meta.CourseName != "" {
		brief += " in " + meta.CourseName
	}
	brief += "."
	if len(labels) > 0 {
		brief += " Focus topics: " + strings.Join(topN(labels, 3), ", ") + "."
	}

	actions := []string{"Quiz me on the scope", "Walk me through a practice problem"}
	if len(labels) > 0 {
		actions = append([]string{fmt.Sprintf("Explain %s step by step", labels[0])}, actions...)
	}

	return model.TutorHandoff{
		ButtonLabel: "Ask the tutor",
		Brief:       brief,
		Context: model.TutorContext{
			CourseName:      meta.CourseName,
			AssessmentTitle: meta.Assessment.Title,
			DueDate:         meta.Assessment.DueDate,
			Topics:          append([]string{}, labels...),
		},
		QuickActions: actions,
	}
}

func buildUIHints(topics []model.Topic, labels []string) model.UIHints {
	budgets := []model.TimeBudget{}
	for _, t := range topics {
		budgets = append(budgets, model.TimeBudget{Topic: t.Label, Minutes: badgeBudgets[t.Badge]})
	}
	return model.UIHints{
		TopicChips:   append([]string{}, labels...),
		DefaultChips: append([]string{}, topN(labels, 3)...),
		TimeBudgets:  budgets,
	}
}
