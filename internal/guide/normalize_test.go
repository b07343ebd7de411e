package guide

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/pavelanni/studypilot/internal/model"
)

func fallbackFixture() *model.GuideDocument {
	req := model.GuideRequest{
		Question: "help me study for the quadratics quiz",
		Today:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	gather := &model.GatherResult{
		Course: &model.CourseSnapshot{ID: 2, Name: "Algebra 2"},
	}
	topics := BuildTopics(nil, nil, nil, CurriculumTopics("Algebra 2"), ScopeEvidence{})
	return BuildFallback(req, gather, topics)
}

func TestNormalizeNilCandidateUsesFallback(t *testing.T) {
	fallback := fallbackFixture()

	doc := Normalize(nil, fallback)
	if doc.Status != model.StatusReady {
		t.Errorf("status = %q, want %q", doc.Status, model.StatusReady)
	}
	if doc.Meta.CourseName != "Algebra 2" {
		t.Errorf("course name = %q, want fallback's", doc.Meta.CourseName)
	}
	if len(doc.ScopeLock.Topics) != len(fallback.ScopeLock.Topics) {
		t.Errorf("topics = %d, want %d from fallback", len(doc.ScopeLock.Topics), len(fallback.ScopeLock.Topics))
	}
	if len(doc.StudyGuide.Sections) != 5 {
		t.Errorf("sections = %d, want all 5 fallback sections", len(doc.StudyGuide.Sections))
	}
}

func TestNormalizeRepairsMalformedCandidate(t *testing.T) {
	fallback := fallbackFixture()

	candidate := map[string]any{
		"status": 42,
		"meta": map[string]any{
			"confidence": "very high",
		},
		"scope_lock": map[string]any{
			"topics": []any{
				map[string]any{"label": "Factoring quadratics", "badge": "definitely on test"},
				"not an object",
			},
		},
		"checklist": []any{
			map[string]any{"id": "c1", "task": "Practice factoring", "badge": "nope"},
			17,
		},
	}

	doc := Normalize(candidate, fallback)

	if doc.Status != model.StatusReady {
		t.Errorf("status = %q, want coerced %q", doc.Status, model.StatusReady)
	}
	// Wrong-typed confidence falls back.
	if doc.Meta.Confidence != fallback.Meta.Confidence {
		t.Errorf("confidence = %d, want fallback %d", doc.Meta.Confidence, fallback.Meta.Confidence)
	}
	// The non-object topic element is dropped; the invalid badge is coerced.
	if len(doc.ScopeLock.Topics) != 1 {
		t.Fatalf("topics = %d, want 1", len(doc.ScopeLock.Topics))
	}
	if doc.ScopeLock.Topics[0].Badge != model.BadgeLikely {
		t.Errorf("topic badge = %q, want coerced %q", doc.ScopeLock.Topics[0].Badge, model.BadgeLikely)
	}
	if doc.ScopeLock.Topics[0].Evidence == nil {
		t.Error("topic evidence should never be nil")
	}
	if len(doc.Checklist) != 1 {
		t.Fatalf("checklist = %d, want 1", len(doc.Checklist))
	}
	if doc.Checklist[0].Badge != model.BadgeLikely {
		t.Errorf("checklist badge = %q, want coerced %q", doc.Checklist[0].Badge, model.BadgeLikely)
	}
	// Chips are re-derived from the final topic list.
	if len(doc.UIHints.TopicChips) != 1 || doc.UIHints.TopicChips[0] != "Factoring quadratics" {
		t.Errorf("topic chips = %v, want re-derived from topics", doc.UIHints.TopicChips)
	}
}

func TestNormalizeClampsConfidence(t *testing.T) {
	fallback := fallbackFixture()
	doc := Normalize(map[string]any{
		"meta": map[string]any{"confidence": float64(150)},
	}, fallback)
	if doc.Meta.Confidence != 100 {
		t.Errorf("confidence = %d, want clamped 100", doc.Meta.Confidence)
	}

	doc = Normalize(map[string]any{
		"meta": map[string]any{"confidence": float64(-5)},
	}, fallback)
	if doc.Meta.Confidence != 0 {
		t.Errorf("confidence = %d, want clamped 0", doc.Meta.Confidence)
	}
}

func TestNormalizeRecoversEmptyScope(t *testing.T) {
	fallback := fallbackFixture()

	// The candidate proposes only junk topics; the fallback scope wins.
	doc := Normalize(map[string]any{
		"scope_lock": map[string]any{
			"topics": []any{
				map[string]any{"label": "what", "badge": string(model.BadgeLikely)},
			},
		},
	}, fallback)

	if len(doc.ScopeLock.Topics) != len(fallback.ScopeLock.Topics) {
		t.Fatalf("topics = %d, want %d recovered from fallback", len(doc.ScopeLock.Topics), len(fallback.ScopeLock.Topics))
	}
	if len(doc.UIHints.TopicChips) != len(fallback.ScopeLock.Topics) {
		t.Errorf("chips = %d, want one per recovered topic", len(doc.UIHints.TopicChips))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	// Normalization is a pure function of its inputs: running it twice over
	// the same candidate and fallback yields byte-identical documents, and
	// neither input is mutated between calls.
	fallback := fallbackFixture()
	candidate := map[string]any{
		"meta": map[string]any{"confidence": float64(150)},
		"scope_lock": map[string]any{
			"topics": []any{
				map[string]any{"label": "Factoring quadratics", "badge": "definitely"},
				"junk",
			},
		},
	}

	first := Normalize(candidate, fallback)
	second := Normalize(candidate, fallback)

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("repeated normalization diverged:\n%s\n%s", a, b)
	}
}

func TestNormalizeNeverNilSlices(t *testing.T) {
	doc := Normalize(map[string]any{}, &model.GuideDocument{})
	if doc.Meta.Assumptions == nil || doc.ScopeLock.OutOfScope == nil ||
		doc.StudyGuide.Sections == nil || doc.Checklist == nil ||
		doc.TutorHandoff.QuickActions == nil || doc.TutorHandoff.Context.Topics == nil ||
		doc.UIHints.TimeBudgets == nil || doc.UIHints.TopicChips == nil {
		t.Error("normalized document must have no nil slices")
	}
}
