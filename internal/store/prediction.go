package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Kind is the input type a prediction was made from.
type Kind string

const (
	// KindFrame is a single still frame.
	KindFrame Kind = "frame"
	// KindVideo is an aggregated video verdict.
	KindVideo Kind = "video"
)

// DefaultListLimit bounds List when no positive limit is given.
const DefaultListLimit = 50

// Prediction is one recorded prediction.
type Prediction struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	Label           string    `json:"prediction"`
	Confidence      float64   `json:"confidence"`
	HandDetected    bool      `json:"keypoints_detected"`
	FramesProcessed int       `json:"frames_processed,omitempty"`
	Votes           []byte    `json:"-"` // JSON object of label counts, nil when none
	Source          string    `json:"source,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// LabelCount is the number of predictions recorded for a label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PredictionRepository provides access to the prediction history.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository for this store.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Create inserts p, assigning an ID and creation time when unset.
func (r *PredictionRepository) Create(p *Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var votes sql.NullString
	if len(p.Votes) > 0 {
		votes = sql.NullString{String: string(p.Votes), Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO predictions (id, kind, label, confidence, hand_detected, frames_processed, votes, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Kind), p.Label, p.Confidence, p.HandDetected, p.FramesProcessed, votes, p.Source, p.CreatedAt,
	)
	return err
}

// GetByID retrieves a prediction by its ID.
func (r *PredictionRepository) GetByID(id string) (*Prediction, error) {
	p, err := scanPrediction(r.db.QueryRow(
		`SELECT id, kind, label, confidence, hand_detected, frames_processed, votes, source, created_at
		 FROM predictions WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns up to limit predictions, newest first.
func (r *PredictionRepository) List(limit int) ([]*Prediction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, kind, label, confidence, hand_detected, frames_processed, votes, source, created_at
		 FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []*Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

// CountByLabel returns how often each label was predicted, most frequent first.
func (r *PredictionRepository) CountByLabel() ([]LabelCount, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM predictions GROUP BY label ORDER BY COUNT(*) DESC, label ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var c LabelCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// Delete removes a prediction by its ID.
func (r *PredictionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM predictions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (*Prediction, error) {
	p := &Prediction{}
	var (
		kind  string
		votes sql.NullString
	)

	err := row.Scan(&p.ID, &kind, &p.Label, &p.Confidence, &p.HandDetected, &p.FramesProcessed, &votes, &p.Source, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Kind = Kind(kind)
	if votes.Valid {
		p.Votes = []byte(votes.String)
	}
	return p, nil
}
