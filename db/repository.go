package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"edudiff/logging"
	"edudiff/metrics"
)

// sqliteTimeLayout matches CURRENT_TIMESTAMP and datetime('now').
const sqliteTimeLayout = "2006-01-02 15:04:05"

// GenerationRow is one row of the generations table.
type GenerationRow struct {
	ID             int64
	GenerationID   string
	Style          string
	Prompt         string
	ComposedPrompt string
	NegativePrompt string
	Backend        string
	Conditioning   string
	Steps          int
	Guidance       float64
	Width          int
	Height         int
	Seed           int64
	DurationMS     int64
	Outcome        string
	Status         string
	ImagePath      string
	QualityOverall sql.NullFloat64
	CreatedAt      time.Time
}

const insertGeneration = `
	INSERT INTO generations (
		generation_id, style, prompt, composed_prompt, negative_prompt,
		backend, conditioning, steps, guidance, width, height, seed,
		duration_ms, outcome, status, image_path, quality_overall, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Repository reads and writes the generation log. Inserts go through the
// AsyncWriter when one is running and fall back to a synchronous write
// when its queue is full.
type Repository struct {
	db     *Database
	writer *AsyncWriter
	logger *logging.Logger
}

// NewRepository creates a repository. writer and logger may be nil.
func NewRepository(db *Database, writer *AsyncWriter, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Repository{db: db, writer: writer, logger: logger.Named("db")}
}

// NewAsyncRepository creates a repository together with a started
// AsyncWriter whose failures are logged. Stop the writer on shutdown.
func NewAsyncRepository(db *Database, queueCapacity int, logger *logging.Logger) (*Repository, *AsyncWriter) {
	repo := NewRepository(db, nil, logger)
	repo.writer = NewAsyncWriterWithConfig(repo.WriteHandler(), AsyncWriterConfig{
		QueueCapacity: queueCapacity,
		OnError: func(op WriteOperation, err error) {
			repo.logger.Warn("Async generation log write failed",
				zap.Duration("queued_for", time.Since(op.QueuedAt)),
				zap.Error(err))
		},
	})
	repo.writer.Start()
	return repo, repo.writer
}

type insertOp struct {
	args []interface{}
}

// WriteHandler executes queued inserts.
func (r *Repository) WriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		ins, ok := op.Data.(insertOp)
		if !ok {
			return fmt.Errorf("invalid operation type %T", op.Data)
		}
		_, err := r.db.ExecContext(context.Background(), insertGeneration, ins.args...)
		return err
	}
}

// InsertGeneration stores rec. It returns the row id for synchronous
// writes and 0 when the write was queued.
func (r *Repository) InsertGeneration(ctx context.Context, rec metrics.Record) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var quality interface{}
	if rec.Quality != nil {
		quality = rec.Quality.Overall
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	args := []interface{}{
		rec.ID,
		rec.Style,
		rec.Prompt,
		nullString(rec.ComposedPrompt),
		nullString(rec.NegativePrompt),
		rec.Backend,
		nullString(rec.Conditioning),
		rec.Steps,
		rec.Guidance,
		rec.Width,
		rec.Height,
		rec.Seed,
		rec.Duration.Milliseconds(),
		rec.Outcome,
		nullString(rec.Status),
		nullString(rec.ImagePath),
		quality,
		ts.UTC().Format(sqliteTimeLayout),
	}

	if r.writer != nil && r.writer.Write(insertOp{args: args}) {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, insertGeneration, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// Record stores rec and logs failures. It lets the repository serve as the
// generator's record sink.
func (r *Repository) Record(rec metrics.Record) {
	if _, err := r.InsertGeneration(context.Background(), rec); err != nil {
		r.logger.Warn("Failed to log generation",
			zap.String("generation_id", rec.ID),
			zap.Error(err))
	}
}

// QueryRecent returns up to limit rows, newest first. limit <= 0 means 10.
func (r *Repository) QueryRecent(ctx context.Context, limit int) ([]GenerationRow, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.query(ctx, `ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// QueryByGenerationID returns the rows for one generation id.
func (r *Repository) QueryByGenerationID(ctx context.Context, generationID string) ([]GenerationRow, error) {
	return r.query(ctx, `WHERE generation_id = ? ORDER BY id`, generationID)
}

func (r *Repository) query(ctx context.Context, tail string, args ...interface{}) ([]GenerationRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT id, generation_id, style, prompt,
			   COALESCE(composed_prompt, ''), COALESCE(negative_prompt, ''),
			   backend, COALESCE(conditioning, ''), steps, guidance, width, height,
			   seed, duration_ms, outcome, COALESCE(status, ''), COALESCE(image_path, ''),
			   quality_overall, strftime('%Y-%m-%d %H:%M:%S', created_at)
		FROM generations ` + tail

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []GenerationRow
	for rows.Next() {
		var row GenerationRow
		var createdAt sql.NullString
		if err := rows.Scan(
			&row.ID, &row.GenerationID, &row.Style, &row.Prompt,
			&row.ComposedPrompt, &row.NegativePrompt,
			&row.Backend, &row.Conditioning, &row.Steps, &row.Guidance, &row.Width, &row.Height,
			&row.Seed, &row.DurationMS, &row.Outcome, &row.Status, &row.ImagePath,
			&row.QualityOverall, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation row: %w", err)
		}
		if createdAt.Valid {
			row.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt.String)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation rows: %w", err)
	}
	return out, nil
}

// Count returns the number of logged generations.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	row, err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations")
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return n, nil
}

// CountByOutcome returns the number of rows per outcome.
func (r *Repository) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM generations GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// nullString stores empty strings as NULL.
func nullString(s string) interface{} {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
