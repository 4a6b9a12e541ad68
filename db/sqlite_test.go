package db

import (
	"path/filepath"
	"testing"
	"time"

	"inferd/serving"
)

func TestStoreSaveAndQuery(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		err := store.SavePrediction(serving.AuditRecord{
			Features:   []float64{1.5, 2.3, 4.5, float64(i)},
			Prediction: i % 2,
			Confidence: 0.77,
			LatencyMS:  0.4,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recent, err := store.RecentPredictions(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(recent))
	}
	// Newest first.
	if recent[0].Features[3] != 2.0 {
		t.Fatalf("unexpected ordering: %+v", recent[0])
	}
	if recent[0].Prediction != 0 || recent[0].Confidence != 0.77 {
		t.Fatalf("unexpected row: %+v", recent[0])
	}
}

func TestStoreRecentPredictionsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	recent, err := store.RecentPredictions(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no rows, got %d", len(recent))
	}
}
