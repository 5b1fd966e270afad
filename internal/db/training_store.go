package db

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wormlab/untangle/internal/worm"
	"github.com/wormlab/untangle/internal/wormfile"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TrainingSet is a stored training-data record. The canonical XML document
// is the source of truth; the scalar columns are denormalised for listing
// without re-parsing. Rows are immutable once inserted.
type TrainingSet struct {
	ID               string  `json:"training_set_id"`
	Name             string  `json:"name"`
	Version          int     `json:"version"`
	NumControlPoints int     `json:"num_control_points"`
	TrainingSetSize  int     `json:"training_set_size"`
	CostThreshold    float64 `json:"cost_threshold"`
	MinArea          float64 `json:"min_area"`
	MaxArea          float64 `json:"max_area"`
	MedianWormArea   float64 `json:"median_worm_area"`
	Document         string  `json:"-"`
	CreatedAtNs      int64   `json:"created_at_ns"`
}

// TrainingSetStore provides persistence for training-data records.
type TrainingSetStore struct {
	db *sql.DB
}

// NewTrainingSetStore creates a new TrainingSetStore.
func NewTrainingSetStore(db *DB) *TrainingSetStore {
	return &TrainingSetStore{db: db.DB}
}

// Insert validates params, renders the canonical document, and stores it
// under a fresh UUID. There is no update path: a training record is a
// frozen statistical summary.
func (s *TrainingSetStore) Insert(name string, params *worm.TrainingParams) (*TrainingSet, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("insert training set: %w", err)
	}
	doc, err := wormfile.EncodeBytes(params)
	if err != nil {
		return nil, fmt.Errorf("insert training set: %w", err)
	}

	ts := &TrainingSet{
		ID:               uuid.New().String(),
		Name:             name,
		Version:          params.Version,
		NumControlPoints: params.NumControlPoints,
		TrainingSetSize:  params.TrainingSetSize,
		CostThreshold:    params.CostThreshold,
		MinArea:          params.MinArea,
		MaxArea:          params.MaxArea,
		MedianWormArea:   params.MedianWormArea,
		Document:         string(doc),
		CreatedAtNs:      time.Now().UnixNano(),
	}

	query := `
		INSERT INTO training_sets (
			training_set_id, name, version, num_control_points,
			training_set_size, cost_threshold, min_area, max_area,
			median_worm_area, document, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		ts.ID, ts.Name, ts.Version, ts.NumControlPoints,
		ts.TrainingSetSize, ts.CostThreshold, ts.MinArea, ts.MaxArea,
		ts.MedianWormArea, ts.Document, ts.CreatedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert training set: %w", err)
	}
	return ts, nil
}

const trainingSetColumns = `
	training_set_id, name, version, num_control_points,
	training_set_size, cost_threshold, min_area, max_area,
	median_worm_area, document, created_at_ns
`

func scanTrainingSet(row interface{ Scan(...any) error }) (*TrainingSet, error) {
	var ts TrainingSet
	err := row.Scan(
		&ts.ID, &ts.Name, &ts.Version, &ts.NumControlPoints,
		&ts.TrainingSetSize, &ts.CostThreshold, &ts.MinArea, &ts.MaxArea,
		&ts.MedianWormArea, &ts.Document, &ts.CreatedAtNs,
	)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Get retrieves a training set by ID.
func (s *TrainingSetStore) Get(id string) (*TrainingSet, error) {
	row := s.db.QueryRow(
		`SELECT `+trainingSetColumns+` FROM training_sets WHERE training_set_id = ?`, id)
	ts, err := scanTrainingSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training set %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get training set: %w", err)
	}
	return ts, nil
}

// GetParams retrieves a training set and decodes its document back into
// the domain record.
func (s *TrainingSetStore) GetParams(id string) (*worm.TrainingParams, error) {
	ts, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	params, err := wormfile.Decode(bytes.NewReader([]byte(ts.Document)))
	if err != nil {
		return nil, fmt.Errorf("decode stored document %s: %w", id, err)
	}
	return params, nil
}

// List returns all training sets, newest first. Documents are included;
// callers listing summaries should not serialise the Document field.
func (s *TrainingSetStore) List() ([]TrainingSet, error) {
	rows, err := s.db.Query(
		`SELECT ` + trainingSetColumns + ` FROM training_sets ORDER BY created_at_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("list training sets: %w", err)
	}
	defer rows.Close()

	var sets []TrainingSet
	for rows.Next() {
		ts, err := scanTrainingSet(rows)
		if err != nil {
			return nil, fmt.Errorf("list training sets: %w", err)
		}
		sets = append(sets, *ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list training sets: %w", err)
	}
	return sets, nil
}

// Delete removes a training set and, via the FK cascade, its score log.
func (s *TrainingSetStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM training_sets WHERE training_set_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete training set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete training set: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("training set %s: %w", id, ErrNotFound)
	}
	return nil
}
