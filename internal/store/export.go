package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/studypilot/internal/model"
)

// ExportAllGuides builds an export of every saved guide, grouped by student.
func (s *Store) ExportAllGuides() (*model.HistoryExport, error) {
	entries, err := s.ListAllGuides()
	if err != nil {
		return nil, fmt.Errorf("list guides: %w", err)
	}

	byUser := make(map[int64][]model.HistoryEntry)
	var order []int64
	for _, entry := range entries {
		if _, seen := byUser[entry.UserID]; !seen {
			order = append(order, entry.UserID)
		}
		byUser[entry.UserID] = append(byUser[entry.UserID], entry)
	}

	export := &model.HistoryExport{
		ExportedAt: time.Now(),
		NumGuides:  len(entries),
		Results:    []model.StudentGuides{},
	}
	for _, userID := range order {
		user, err := s.GetUserByID(userID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", userID, err)
		}
		var externalID, displayName string
		if user != nil {
			externalID = user.ExternalID
			displayName = user.DisplayName
		}
		export.Results = append(export.Results, model.StudentGuides{
			ExternalID:  externalID,
			DisplayName: displayName,
			Guides:      byUser[userID],
		})
	}
	return export, nil
}
