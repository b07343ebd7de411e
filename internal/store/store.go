package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/studypilot/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS guide_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		course_name TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL,
		legacy TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (user_id, key),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveGuide stores a generated guide with its legacy projection.
func (s *Store) SaveGuide(entry model.HistoryEntry) (int64, error) {
	docJSON, err := json.Marshal(entry.Document)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}
	legacyJSON, err := json.Marshal(entry.Legacy)
	if err != nil {
		return 0, fmt.Errorf("marshal legacy guide: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO guide_history (user_id, question, course_name, document, legacy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Question, entry.CourseName, string(docJSON), string(legacyJSON), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetGuide returns a saved guide by ID, scoped to its owner.
// Returns nil if not found or owned by another user.
func (s *Store) GetGuide(id, userID int64) (*model.HistoryEntry, error) {
	var entry model.HistoryEntry
	var docJSON, legacyJSON string
	err := s.db.QueryRow(
		`SELECT id, user_id, question, course_name, document, legacy, created_at
		 FROM guide_history WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&entry.ID, &entry.UserID, &entry.Question, &entry.CourseName, &docJSON, &legacyJSON, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalGuide(docJSON, legacyJSON, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListGuides returns a user's saved guides, newest first.
func (s *Store) ListGuides(userID int64) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, question, course_name, document, legacy, created_at
		 FROM guide_history WHERE user_id = ? ORDER BY id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var docJSON, legacyJSON string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Question, &entry.CourseName, &docJSON, &legacyJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalGuide(docJSON, legacyJSON, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListAllGuides returns every saved guide across users, newest first.
func (s *Store) ListAllGuides() ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, question, course_name, document, legacy, created_at
		 FROM guide_history ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var docJSON, legacyJSON string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Question, &entry.CourseName, &docJSON, &legacyJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalGuide(docJSON, legacyJSON, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GuideCount returns the number of saved guides.
func (s *Store) GuideCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM guide_history`).Scan(&count)
	return count, err
}

func unmarshalGuide(docJSON, legacyJSON string, entry *model.HistoryEntry) error {
	if docJSON != "" {
		var doc model.GuideDocument
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return fmt.Errorf("unmarshal document %d: %w", entry.ID, err)
		}
		entry.Document = &doc
	}
	if legacyJSON != "" && legacyJSON != "null" {
		var legacy model.LegacyGuide
		if err := json.Unmarshal([]byte(legacyJSON), &legacy); err != nil {
			return fmt.Errorf("unmarshal legacy guide %d: %w", entry.ID, err)
		}
		entry.Legacy = &legacy
	}
	return nil
}
