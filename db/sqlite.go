package db

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"inferd/serving"
)

// Store is the SQLite prediction audit log.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database and creates the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        features TEXT,
        predicted_label INTEGER,
        confidence REAL,
        latency_ms REAL,
        created DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavePrediction implements serving.AuditStore.
func (s *Store) SavePrediction(rec serving.AuditRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.Exec(
		`INSERT INTO predictions (features, predicted_label, confidence, latency_ms, created)
         VALUES (?, ?, ?, ?, ?)`,
		string(features), rec.Prediction, rec.Confidence, rec.LatencyMS, created,
	)
	return err
}

// PredictionRow is one persisted audit entry.
type PredictionRow struct {
	ID         int64     `json:"id"`
	Features   []float64 `json:"features"`
	Prediction int       `json:"prediction"`
	Confidence float64   `json:"confidence"`
	LatencyMS  float64   `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecentPredictions returns the newest entries first.
func (s *Store) RecentPredictions(limit int) ([]PredictionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, features, predicted_label, confidence, latency_ms, created
         FROM predictions ORDER BY created DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PredictionRow
	for rows.Next() {
		var row PredictionRow
		var features string
		if err := rows.Scan(&row.ID, &features, &row.Prediction, &row.Confidence, &row.LatencyMS, &row.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &row.Features); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
