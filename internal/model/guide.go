package model

import "encoding/json"

// StatusReady is the only status a document carries once returned to the
// caller; partial and error states are not modeled as separate values.
const StatusReady = "ready"

// Known section ids in a study-guide body.
const (
	SectionMustKnowMap    = "must_know_map"
	SectionDiagnostic     = "diagnostic"
	SectionPracticeSets   = "practice_sets"
	SectionMemoryAndSpeed = "memory_and_speed"
	SectionFinalReview    = "final_review"
)

// GuideDocument is the canonical structured study-guide document.
// It is produced once per generation request and immutable after
// normalization.
type GuideDocument struct {
	Status       string          `json:"status"`
	Meta         GuideMeta       `json:"meta"`
	ScopeLock    ScopeLock       `json:"scope_lock"`
	StudyGuide   StudyGuide      `json:"study_guide"`
	Checklist    []ChecklistItem `json:"checklist"`
	TutorHandoff TutorHandoff    `json:"tutor_handoff"`
	UIHints      UIHints         `json:"ui_hints"`
}

// GuideMeta carries course/assessment identity and generation provenance.
type GuideMeta struct {
	CourseID    int64          `json:"course_id"`
	CourseName  string         `json:"course_name"`
	Assessment  AssessmentMeta `json:"assessment"`
	Confidence  int            `json:"confidence"`
	Assumptions []string       `json:"assumptions"`
	SourcesUsed SourcesUsed    `json:"sources_used"`
}

// AssessmentMeta mirrors the located assessment inside the document.
type AssessmentMeta struct {
	ID      int64            `json:"id"`
	Title   string           `json:"title"`
	DueDate string           `json:"due_date"`
	Format  AssessmentFormat `json:"format"`
}

// AssessmentFormat describes what is known about the assessment's shape.
type AssessmentFormat struct {
	Kind            string `json:"kind"`
	TimeLimitMin    int    `json:"time_limit_minutes"`
	AllowedAttempts int    `json:"allowed_attempts"`
}

// SourcesUsed tallies how many items of each evidence category fed generation.
type SourcesUsed struct {
	Quizzes       int `json:"quizzes"`
	Assignments   int `json:"assignments"`
	Modules       int `json:"modules"`
	Pages         int `json:"pages"`
	Announcements int `json:"announcements"`
	Files         int `json:"files"`
}

// StudyGuide is the guide body: an overview plus ordered sections.
type StudyGuide struct {
	Overview GuideOverview  `json:"overview"`
	Sections []GuideSection `json:"sections"`
}

// GuideOverview summarizes the guide.
type GuideOverview struct {
	Summary          string `json:"summary"`
	EstimatedMinutes int    `json:"estimated_study_minutes"`
}

// GuideSection is a tagged variant keyed by section id. Exactly one of the
// variant pointers is set for a known id; anything else lands in Unknown so
// future section kinds survive a round trip.
type GuideSection struct {
	ID             string
	MustKnowMap    *MustKnowSection
	Diagnostic     *DiagnosticSection
	PracticeSets   *PracticeSetsSection
	MemoryAndSpeed *MemorySpeedSection
	FinalReview    *FinalReviewSection
	Unknown        map[string]any
}

// MustKnowSection lists the concepts the student cannot skip.
type MustKnowSection struct {
	Title string         `json:"title"`
	Items []MustKnowItem `json:"items"`
}

// MustKnowItem is one concept in the must-know map.
type MustKnowItem struct {
	Concept string `json:"concept"`
	Why     string `json:"why"`
	Formula string `json:"formula,omitempty"`
}

// DiagnosticSection holds quick self-check questions.
type DiagnosticSection struct {
	Title     string               `json:"title"`
	Questions []DiagnosticQuestion `json:"questions"`
}

// DiagnosticQuestion is one self-check question with its answer.
type DiagnosticQuestion struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
	Topic  string `json:"topic"`
}

// PracticeSetsSection groups practice problems by topic.
type PracticeSetsSection struct {
	Title string        `json:"title"`
	Sets  []PracticeSet `json:"sets"`
}

// PracticeSet is a batch of practice problems for one topic.
type PracticeSet struct {
	Topic    string   `json:"topic"`
	Problems []string `json:"problems"`
}

// MemorySpeedSection holds drills and mnemonics for recall speed.
type MemorySpeedSection struct {
	Title     string   `json:"title"`
	Drills    []string `json:"drills"`
	Mnemonics []string `json:"mnemonics"`
}

// FinalReviewSection is the last-pass review plan.
type FinalReviewSection struct {
	Title  string   `json:"title"`
	Steps  []string `json:"steps"`
	Topics []string `json:"topics"`
}

// MarshalJSON flattens the active variant into a single object with its id.
func (s GuideSection) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	var inner any
	switch {
	case s.MustKnowMap != nil:
		inner = s.MustKnowMap
	case s.Diagnostic != nil:
		inner = s.Diagnostic
	case s.PracticeSets != nil:
		inner = s.PracticeSets
	case s.MemoryAndSpeed != nil:
		inner = s.MemoryAndSpeed
	case s.FinalReview != nil:
		inner = s.FinalReview
	default:
		for k, v := range s.Unknown {
			body[k] = v
		}
	}
	if inner != nil {
		raw, err := json.Marshal(inner)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
	}
	body["id"] = s.ID
	return json.Marshal(body)
}

// UnmarshalJSON dispatches on the "id" field. It never rejects a section:
// anything that does not decode as a known variant is kept as Unknown.
func (s *GuideSection) UnmarshalJSON(data []byte) error {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		s.Unknown = map[string]any{}
		return nil
	}
	id, _ := body["id"].(string)
	s.ID = id

	decode := func(dst any) bool {
		return json.Unmarshal(data, dst) == nil
	}
	switch id {
	case SectionMustKnowMap:
		var v MustKnowSection
		if decode(&v) {
			s.MustKnowMap = &v
			return nil
		}
	case SectionDiagnostic:
		var v DiagnosticSection
		if decode(&v) {
			s.Diagnostic = &v
			return nil
		}
	case SectionPracticeSets:
		var v PracticeSetsSection
		if decode(&v) {
			s.PracticeSets = &v
			return nil
		}
	case SectionMemoryAndSpeed:
		var v MemorySpeedSection
		if decode(&v) {
			s.MemoryAndSpeed = &v
			return nil
		}
	case SectionFinalReview:
		var v FinalReviewSection
		if decode(&v) {
			s.FinalReview = &v
			return nil
		}
	}
	delete(body, "id")
	s.Unknown = body
	return nil
}

// ChecklistItem is one actionable item linked back to a guide section.
type ChecklistItem struct {
	ID        string `json:"id"`
	Task      string `json:"task"`
	Badge     Badge  `json:"badge"`
	DoneWhen  string `json:"done_when"`
	SectionID string `json:"section_id"`
}

// TutorHandoff is the payload shape for the downstream tutoring consumer.
type TutorHandoff struct {
	ButtonLabel  string       `json:"button_label"`
	Brief        string       `json:"brief"`
	Context      TutorContext `json:"context"`
	QuickActions []string     `json:"quick_actions"`
}

// TutorContext mirrors course/assessment/topic identity for the tutor.
type TutorContext struct {
	CourseName      string   `json:"course_name"`
	AssessmentTitle string   `json:"assessment_title"`
	DueDate         string   `json:"due_date"`
	Topics          []string `json:"topics"`
}

// UIHints drives topic chips and time budgets in the client.
type UIHints struct {
	TopicChips   []string     `json:"topic_chips"`
	DefaultChips []string     `json:"default_selected_topics"`
	TimeBudgets  []TimeBudget `json:"time_budgets"`
}

// TimeBudget is a recommended per-topic study budget.
type TimeBudget struct {
	Topic   string `json:"topic"`
	Minutes int    `json:"minutes"`
}

// LegacyGuide is the flattened projection of GuideDocument consumed by the
// older client. Derived deterministically; never constructed independently.
type LegacyGuide struct {
	Overview     string           `json:"overview"`
	TopicOutline *TopicOutline    `json:"topic_outline,omitempty"`
	WeeklyPlan   []PlanDay        `json:"weekly_plan"`
	Priorities   []LegacyPriority `json:"priorities"`
	Checklist    []string         `json:"checklist"`
}

// TopicOutline is the legacy single-topic outline.
type TopicOutline struct {
	Topic    string   `json:"topic"`
	Concepts []string `json:"concepts"`
}

// PlanDay is one fixed-day entry in the legacy weekly plan.
type PlanDay struct {
	Day     string   `json:"day"`
	Tasks   []string `json:"tasks"`
	Minutes int      `json:"minutes"`
}

// LegacyPriority is one prioritized subject in the legacy shape.
type LegacyPriority struct {
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
	Action  string `json:"action"`
}
