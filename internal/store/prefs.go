package store

import (
	"database/sql"
)

// SetPreference upserts a per-user key-value preference.
func (s *Store) SetPreference(userID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = ?`,
		userID, key, value, value,
	)
	return err
}

// GetPreference returns the value for a user's preference key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetPreference(userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ListPreferences returns all of a user's preferences as a map.
func (s *Store) ListPreferences(userID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}
