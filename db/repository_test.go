package db

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"edudiff/logging"
	"edudiff/metrics"
)

func TestRepository_InsertAndQuery(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()

	id, err := repo.InsertGeneration(ctx, sampleRecord("gen-1", metrics.OutcomeSuccess))
	if err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d, want > 0 for synchronous insert", id)
	}
	if _, err := repo.InsertGeneration(ctx, sampleRecord("gen-2", "rate_limited")); err != nil {
		t.Fatal(err)
	}

	rows, err := repo.QueryRecent(ctx, 10)
	if err != nil {
		t.Fatalf("QueryRecent() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].GenerationID != "gen-2" {
		t.Errorf("newest row = %q, want gen-2", rows[0].GenerationID)
	}

	ok := rows[1]
	if ok.Style != "🔬 Científico Detallado" || ok.Seed != 4294967295 || ok.DurationMS != 1500 {
		t.Errorf("row = %+v", ok)
	}
	if !ok.QualityOverall.Valid || ok.QualityOverall.Float64 != 0.812 {
		t.Errorf("quality = %+v", ok.QualityOverall)
	}
	if ok.CreatedAt.IsZero() || time.Since(ok.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v", ok.CreatedAt)
	}
	if rows[0].QualityOverall.Valid || rows[0].ImagePath != "" {
		t.Errorf("failed row should have no quality or image: %+v", rows[0])
	}

	byID, err := repo.QueryByGenerationID(ctx, "gen-1")
	if err != nil || len(byID) != 1 {
		t.Errorf("QueryByGenerationID() = %d rows, %v", len(byID), err)
	}

	counts, err := repo.CountByOutcome(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[metrics.OutcomeSuccess] != 1 || counts["rate_limited"] != 1 {
		t.Errorf("CountByOutcome() = %v", counts)
	}
}

func TestRepository_AsyncRecord(t *testing.T) {
	database := openTestDB(t)
	repo, writer := NewAsyncRepository(database, 10, nil)

	for _, id := range []string{"a", "b", "c"} {
		repo.Record(sampleRecord(id, metrics.OutcomeSuccess))
	}
	if !writer.Stop(5 * time.Second) {
		t.Fatal("writer did not drain")
	}

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestRepository_FallsBackToSyncWhenStopped(t *testing.T) {
	database := openTestDB(t)
	repo, writer := NewAsyncRepository(database, 10, nil)
	writer.Stop(time.Second)

	id, err := repo.InsertGeneration(context.Background(), sampleRecord("late", "auth"))
	if err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}
	if id == 0 {
		t.Error("expected a synchronous insert with a row id")
	}
}

func TestRepository_RecordLogsFailure(t *testing.T) {
	database := openTestDB(t)
	core, logs := observer.New(zap.WarnLevel)
	repo := NewRepository(database, nil, logging.NewFromZap(zap.New(core)))
	database.Close()

	repo.Record(sampleRecord("x", metrics.OutcomeSuccess))

	if logs.FilterMessage("Failed to log generation").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}
