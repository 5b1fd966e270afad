package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wormlab/untangle/internal/worm"
)

// ScoreEntry is one logged scoring decision against a stored training set.
type ScoreEntry struct {
	ID            string  `json:"score_id"`
	TrainingSetID string  `json:"training_set_id"`
	Cost          float64 `json:"cost"`
	Accepted      bool    `json:"accepted"`
	Reason        string  `json:"reason"`
	CreatedAtNs   int64   `json:"created_at_ns"`
}

// ScoreLogStore records scoring verdicts for later inspection.
type ScoreLogStore struct {
	db *sql.DB
}

// NewScoreLogStore creates a new ScoreLogStore.
func NewScoreLogStore(db *DB) *ScoreLogStore {
	return &ScoreLogStore{db: db.DB}
}

// Insert logs a verdict for the given training set.
func (s *ScoreLogStore) Insert(trainingSetID string, v worm.Verdict) (*ScoreEntry, error) {
	entry := &ScoreEntry{
		ID:            uuid.New().String(),
		TrainingSetID: trainingSetID,
		Cost:          v.Cost,
		Accepted:      v.Accepted,
		Reason:        v.Reason,
		CreatedAtNs:   time.Now().UnixNano(),
	}
	_, err := s.db.Exec(`
		INSERT INTO score_log (score_id, training_set_id, cost, accepted, reason, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TrainingSetID, entry.Cost, entry.Accepted, entry.Reason, entry.CreatedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert score entry: %w", err)
	}
	return entry, nil
}

// ListBySet returns the score log for one training set, newest first.
func (s *ScoreLogStore) ListBySet(trainingSetID string, limit int) ([]ScoreEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT score_id, training_set_id, cost, accepted, reason, created_at_ns
		FROM score_log
		WHERE training_set_id = ?
		ORDER BY created_at_ns DESC
		LIMIT ?`, trainingSetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list score entries: %w", err)
	}
	defer rows.Close()

	var entries []ScoreEntry
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.ID, &e.TrainingSetID, &e.Cost, &e.Accepted, &e.Reason, &e.CreatedAtNs); err != nil {
			return nil, fmt.Errorf("list score entries: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list score entries: %w", err)
	}
	return entries, nil
}
