package guide

import (
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/studypilot/internal/model"
)

func algebraScope() []model.Topic {
	return BuildTopics(nil, nil, nil, CurriculumTopics("Algebra 2"), ScopeEvidence{})
}

func TestBuildFallbackCourseOnly(t *testing.T) {
	req := model.GuideRequest{
		Question: "help me study for the quadratics quiz",
		Today:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	gather := &model.GatherResult{
		Course: &model.CourseSnapshot{ID: 2, Name: "Algebra 2"},
	}

	doc := BuildFallback(req, gather, algebraScope())

	if doc.Status != model.StatusReady {
		t.Errorf("status = %q, want %q", doc.Status, model.StatusReady)
	}
	if doc.Meta.CourseName != "Algebra 2" {
		t.Errorf("course name = %q", doc.Meta.CourseName)
	}
	// Base confidence only: no assessment, no confirmed topics, no signals.
	if doc.Meta.Confidence != 35 {
		t.Errorf("confidence = %d, want 35", doc.Meta.Confidence)
	}
	if len(doc.Meta.Assumptions) == 0 {
		t.Error("expected the no-assessment assumption")
	}
	if len(doc.StudyGuide.Sections) != 5 {
		t.Fatalf("sections = %d, want 5", len(doc.StudyGuide.Sections))
	}
	wantOrder := []string{
		model.SectionMustKnowMap,
		model.SectionDiagnostic,
		model.SectionPracticeSets,
		model.SectionMemoryAndSpeed,
		model.SectionFinalReview,
	}
	for i, s := range doc.StudyGuide.Sections {
		if s.ID != wantOrder[i] {
			t.Errorf("section %d id = %q, want %q", i, s.ID, wantOrder[i])
		}
	}
	if doc.TutorHandoff.ButtonLabel != "Ask the tutor" {
		t.Errorf("button label = %q", doc.TutorHandoff.ButtonLabel)
	}
}

func TestBuildFallbackConfidenceAccumulates(t *testing.T) {
	req := model.GuideRequest{Question: "q", Today: time.Now()}
	due := time.Now().Add(48 * time.Hour)
	gather := &model.GatherResult{
		Course: &model.CourseSnapshot{ID: 2, Name: "Algebra 2"},
		Assessment: &model.AssessmentCandidate{
			ID: 10, Title: "Unit 5 Quiz", Kind: model.AssessmentQuiz, DueAt: &due,
		},
		WeakSignals: []model.WeakSignal{{Title: "Factoring Worksheet", Percent: 62}},
	}
	topics := []model.Topic{
		{Label: "Factoring quadratics", Badge: model.BadgeConfirmed},
		{Label: "Graphing parabolas", Badge: model.BadgeLikely},
	}

	doc := BuildFallback(req, gather, topics)

	// 35 base, +25 assessment, +15 confirmed topic, +10 weak signals = 85.
	if doc.Meta.Confidence != 85 {
		t.Errorf("confidence = %d, want 85", doc.Meta.Confidence)
	}
	if doc.Meta.Assessment.Title != "Unit 5 Quiz" {
		t.Errorf("assessment title = %q", doc.Meta.Assessment.Title)
	}
	if doc.Meta.Assessment.DueDate != due.Format("2006-01-02") {
		t.Errorf("due date = %q", doc.Meta.Assessment.DueDate)
	}
	if doc.Meta.SourcesUsed.Quizzes != 1 {
		t.Errorf("quizzes used = %d, want 1", doc.Meta.SourcesUsed.Quizzes)
	}
}

func TestBuildFallbackConfidenceCapped(t *testing.T) {
	// The formula tops out below certainty no matter the evidence.
	if got := fallbackConfidence(&model.GatherResult{
		Assessment:  &model.AssessmentCandidate{ID: 1},
		WeakSignals: []model.WeakSignal{{Title: "x"}},
	}, []model.Topic{{Badge: model.BadgeConfirmed}}); got != 85 {
		t.Errorf("confidence = %d, want 85", got)
	}
	if got := fallbackConfidence(nil, nil); got != 35 {
		t.Errorf("bare confidence = %d, want 35", got)
	}
}

func TestBuildFallbackTimeBudgetsByBadge(t *testing.T) {
	topics := []model.Topic{
		{Label: "A", Badge: model.BadgeConfirmed},
		{Label: "B", Badge: model.BadgeLikely},
		{Label: "C", Badge: model.BadgeMayNot},
	}
	doc := BuildFallback(model.GuideRequest{Question: "q", Today: time.Now()}, nil, topics)

	want := map[string]int{"A": 45, "B": 30, "C": 20}
	if len(doc.UIHints.TimeBudgets) != 3 {
		t.Fatalf("budgets = %d, want 3", len(doc.UIHints.TimeBudgets))
	}
	for _, b := range doc.UIHints.TimeBudgets {
		if b.Minutes != want[b.Topic] {
			t.Errorf("budget for %q = %d, want %d", b.Topic, b.Minutes, want[b.Topic])
		}
	}
	if len(doc.UIHints.DefaultChips) != 3 {
		t.Errorf("default chips = %d, want 3", len(doc.UIHints.DefaultChips))
	}
}

func TestBuildFallbackChecklistIDs(t *testing.T) {
	doc := BuildFallback(model.GuideRequest{Question: "q", Today: time.Now()}, nil, algebraScope())

	if len(doc.Checklist) != 5 {
		t.Fatalf("checklist = %d, want one item per topic", len(doc.Checklist))
	}
	for i, item := range doc.Checklist {
		if !strings.HasPrefix(item.ID, "chk-") {
			t.Errorf("checklist id = %q, want chk- prefix", item.ID)
		}
		if i == 0 && item.ID != "chk-1" {
			t.Errorf("first id = %q, want chk-1", item.ID)
		}
		if item.SectionID != model.SectionPracticeSets {
			t.Errorf("item %d section = %q", i, item.SectionID)
		}
	}
}

func TestBuildFallbackEstimatedMinutes(t *testing.T) {
	doc := BuildFallback(model.GuideRequest{Question: "q", Today: time.Now()}, nil, algebraScope())
	if doc.StudyGuide.Overview.EstimatedMinutes != 25*5 {
		t.Errorf("estimated minutes = %d, want 25 per topic", doc.StudyGuide.Overview.EstimatedMinutes)
	}
}
