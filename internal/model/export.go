package model

import "time"

// HistoryExport is the top-level JSON structure for guide history export.
type HistoryExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	NumGuides  int             `json:"num_guides"`
	Results    []StudentGuides `json:"results"`
}

// StudentGuides holds one student's saved guides for export.
type StudentGuides struct {
	ExternalID  string         `json:"external_id"`
	DisplayName string         `json:"display_name"`
	Guides      []HistoryEntry `json:"guides"`
}

// HistoryEntry is one saved guide document with its legacy projection.
type HistoryEntry struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"-"`
	Question   string         `json:"question"`
	CourseName string         `json:"course_name"`
	Document   *GuideDocument `json:"document"`
	Legacy     *LegacyGuide   `json:"legacy"`
	CreatedAt  time.Time      `json:"created_at"`
}
