package canvas

import "time"

// Wire types for the grading-system REST API. Field shapes are assumed,
// not redesigned; only what the pipeline reads is declared.

// Course is a course record with enrollment score data.
type Course struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	CourseCode  string       `json:"course_code"`
	Enrollments []Enrollment `json:"enrollments"`
}

// Enrollment carries the student's current standing in a course.
type Enrollment struct {
	ComputedCurrentScore *float64 `json:"computed_current_score"`
	ComputedCurrentGrade *string  `json:"computed_current_grade"`
}

// Assignment is an assignment record with the student's submission.
type Assignment struct {
	ID             int64       `json:"id"`
	CourseID       int64       `json:"course_id"`
	Name           string      `json:"name"`
	DueAt          *time.Time  `json:"due_at"`
	PointsPossible *float64    `json:"points_possible"`
	WorkflowState  string      `json:"workflow_state"`
	Submission     *Submission `json:"submission"`
}

// Submission is the student's graded submission for an assignment.
type Submission struct {
	Score *float64 `json:"score"`
}

// Quiz is a quiz record.
type Quiz struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DueAt           *time.Time `json:"due_at"`
	TimeLimit       *int       `json:"time_limit"`
	AllowedAttempts *int       `json:"allowed_attempts"`
}

// Module is a course module.
type Module struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ModuleItem is a single item inside a module.
type ModuleItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Page is a wiki page title record.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Announcement is a course announcement.
type Announcement struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	PostedAt *time.Time `json:"posted_at"`
}

// File is a course file record.
type File struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	ContentType string `json:"content-type"`
}
