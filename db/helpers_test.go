package db

import (
	"path/filepath"
	"testing"
	"time"

	"edudiff/metrics"
	"edudiff/vision"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "data", "edudiff.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleRecord(id, outcome string) metrics.Record {
	rec := metrics.Record{
		ID:             id,
		Timestamp:      time.Now().UTC(),
		Style:          "🔬 Científico Detallado",
		Prompt:         "Diagrama de célula animal",
		ComposedPrompt: "Diagrama de célula animal, scientific illustration, high quality, detailed",
		NegativePrompt: "blurry",
		Backend:        "hosted",
		Steps:          25,
		Guidance:       7.5,
		Width:          1024,
		Height:         768,
		Seed:           4294967295,
		Duration:       1500 * time.Millisecond,
		Outcome:        outcome,
		Status:         "status",
	}
	if outcome == metrics.OutcomeSuccess {
		rec.ImagePath = "results/edudiff_x.png"
		rec.Quality = &vision.Quality{Overall: 0.812}
	}
	return rec
}
