package model

import (
	"context"
	"fmt"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	ExternalID   string // learning-management system user id, if linked
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Stage is the explicit pipeline state machine:
// Gathering -> ScopeAmbiguous | ScopeReady -> Generating -> Done.
type Stage string

const (
	StageGathering      Stage = "gathering"
	StageScopeAmbiguous Stage = "scope_ambiguous"
	StageScopeReady     Stage = "scope_ready"
	StageGenerating     Stage = "generating"
	StageDone           Stage = "done"
)

// Badge is the confidence tier attached to a topic.
type Badge string

const (
	BadgeConfirmed Badge = "Confirmed on test"
	BadgeLikely    Badge = "Likely on test"
	BadgeMayNot    Badge = "May not be on test"
)

// ValidBadge reports whether b is one of the three known tiers.
func ValidBadge(b Badge) bool {
	return b == BadgeConfirmed || b == BadgeLikely || b == BadgeMayNot
}

// EvidenceSource identifies where a piece of topic evidence came from.
type EvidenceSource string

const (
	SourceQuiz         EvidenceSource = "quiz"
	SourceModule       EvidenceSource = "module"
	SourceAssignment   EvidenceSource = "assignment"
	SourceFile         EvidenceSource = "file"
	SourceAnnouncement EvidenceSource = "announcement"
	SourceInference    EvidenceSource = "inference"
)

// Evidence is a single justification entry attached to a topic.
type Evidence struct {
	Source EvidenceSource `json:"source"`
	Note   string         `json:"note"`
}

// Topic is a single confidence-tagged entry in the study scope.
type Topic struct {
	Label         string     `json:"label"`
	Badge         Badge      `json:"badge"`
	Justification string     `json:"justification"`
	Evidence      []Evidence `json:"evidence"`
}

// ScopeLock is the finalized topic set used to drive generation.
type ScopeLock struct {
	Topics     []Topic  `json:"topics"`
	OutOfScope []string `json:"out_of_scope"`
}

// CourseSnapshot is a read-only view of a course from the grading system.
type CourseSnapshot struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Code  string   `json:"code"`
	Score *float64 `json:"score,omitempty"`
	Grade *string  `json:"grade,omitempty"`
}

// AssignmentSnapshot is a read-only view of an assignment and its submission.
type AssignmentSnapshot struct {
	ID             int64      `json:"id"`
	CourseID       int64      `json:"course_id"`
	Title          string     `json:"title"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	Score          *float64   `json:"score,omitempty"`
	PointsPossible *float64   `json:"points_possible,omitempty"`
	WorkflowState  string     `json:"workflow_state"`
}

// AssessmentKind tags an AssessmentCandidate as a quiz or an assignment.
type AssessmentKind string

const (
	AssessmentQuiz       AssessmentKind = "quiz"
	AssessmentAssignment AssessmentKind = "assignment"
)

// AssessmentCandidate is the single best upcoming quiz or assignment
// matched to a user's question. At most one per gather call.
type AssessmentCandidate struct {
	Kind            AssessmentKind `json:"kind"`
	ID              int64          `json:"id"`
	CourseID        int64          `json:"course_id"`
	Title           string         `json:"title"`
	DueAt           *time.Time     `json:"due_at,omitempty"`
	Description     string         `json:"description,omitempty"`
	TimeLimitMin    *int           `json:"time_limit_minutes,omitempty"`
	AllowedAttempts *int           `json:"allowed_attempts,omitempty"`
}

// WeakSignal marks an assignment the student scored below 80% on.
type WeakSignal struct {
	AssignmentID int64   `json:"assignment_id"`
	Title        string  `json:"title"`
	Percent      float64 `json:"percent"`
}

// Materials holds secondary evidence gathered around an assessment.
// Lists are capped at the generation-context limit; callers serving the
// locate response trim further with Capped.
type Materials struct {
	ModuleName    string   `json:"module_name,omitempty"`
	ModuleItems   []string `json:"module_items,omitempty"`
	Announcements []string `json:"announcements,omitempty"`
	Pages         []string `json:"pages,omitempty"`
	Files         []string `json:"files,omitempty"`
}

// Capped returns a copy with every category trimmed to at most n entries.
func (m Materials) Capped(n int) Materials {
	trim := func(xs []string) []string {
		if len(xs) > n {
			return xs[:n]
		}
		return xs
	}
	return Materials{
		ModuleName:    m.ModuleName,
		ModuleItems:   trim(m.ModuleItems),
		Announcements: trim(m.Announcements),
		Pages:         trim(m.Pages),
		Files:         trim(m.Files),
	}
}

// GatherResult is the outcome of locating a course and assessment for a question.
type GatherResult struct {
	Stage           Stage                `json:"stage"`
	Course          *CourseSnapshot      `json:"course"`
	Assessment      *AssessmentCandidate `json:"assessment"`
	Assignments     []AssignmentSnapshot `json:"-"`
	Materials       Materials            `json:"materials"`
	WeakSignals     []WeakSignal         `json:"weak_signals"`
	Uncertainties   []string             `json:"uncertainties"`
	UserQuestions   []string             `json:"user_questions"`
	ReadyToGenerate bool                 `json:"ready_to_generate"`
}

// UploadedMaterial is a user-supplied study material excerpt.
type UploadedMaterial struct {
	Name        string `json:"name"`
	Excerpt     string `json:"excerpt"`
	ConceptHint string `json:"concept_hint,omitempty"`
}

// GuideRequest is the input to one gather-generate-normalize cycle.
type GuideRequest struct {
	Question         string             `json:"question"`
	Today            time.Time          `json:"today"`
	CourseHint       int64              `json:"course_hint,omitempty"`
	SelectedUnits    []string           `json:"selected_units,omitempty"`
	ExplicitConcepts []string           `json:"explicit_concepts,omitempty"`
	Materials        []UploadedMaterial `json:"materials,omitempty"`
	LockedScope      *ScopeLock         `json:"locked_scope,omitempty"`
	Preferences      map[string]string  `json:"preferences,omitempty"`
	ImageRefs        []string           `json:"image_refs,omitempty"`
}

// Priority is a focus recommendation tier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the sort weight of a priority (high=3, medium=2, low=1).
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// FocusRecommendation is a per-course study priority derived from grades.
type FocusRecommendation struct {
	Subject           string   `json:"subject"`
	Priority          Priority `json:"priority"`
	Concept           string   `json:"concept"`
	Justification     string   `json:"justification"`
	SuggestedMinsWeek int      `json:"suggested_minutes_per_week"`
}

// GradeSignal summarizes a course's current standing for the dashboard.
type GradeSignal struct {
	CourseID   int64   `json:"course_id"`
	CourseName string  `json:"course_name"`
	Score      float64 `json:"score"`
	Trend      string  `json:"trend"`
}

// ValidationError reports caller-supplied input that failed schema checks.
// It names the offending field and is rejected before any collaborator call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: field %q: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure from the grading-system or generative-model
// collaborator. It is surfaced as a single error with no automatic retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
