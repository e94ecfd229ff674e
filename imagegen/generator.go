package imagegen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"edudiff/core"
	"edudiff/logging"
	"edudiff/metrics"
	"edudiff/params"
	"edudiff/sdruntime"
	"edudiff/styles"
	"edudiff/vision"
)

// ConditioningNone disables guide-image conditioning.
const ConditioningNone = "none"

// GeneratorConfig holds generation settings.
type GeneratorConfig struct {
	Limits        params.Limits
	Timeout       time.Duration
	MaxConcurrent int
	SaveMetadata  bool
}

// DefaultGeneratorConfig returns the defaults: 120s timeout, one generation
// at a time, metadata on.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Limits:        params.DefaultLimits(),
		Timeout:       120 * time.Second,
		MaxConcurrent: 1,
		SaveMetadata:  true,
	}
}

// GeneratorConfigFromCore derives generator settings from the application config.
func GeneratorConfigFromCore(cfg *core.Config) GeneratorConfig {
	return GeneratorConfig{
		Limits:        params.LimitsFromConfig(cfg),
		Timeout:       cfg.GenerationTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
		SaveMetadata:  cfg.SaveMetadata,
	}
}

// Request is one generation as submitted by the UI.
type Request struct {
	Params params.RawParams
	// GuideImage is the raw uploaded guide image, if any.
	GuideImage []byte
}

// Result is the outcome of Generate. Image is nil on failure.
type Result struct {
	ID        string
	Image     []byte
	ImagePath string
	Status    string
	Category  ErrorCategory
	Params    params.Params
	Metadata  *Metadata
	Warnings  []params.Warning
}

// Succeeded reports whether an image was produced.
func (r *Result) Succeeded() bool {
	return r != nil && len(r.Image) > 0
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithHistory sets the session history.
func WithHistory(h metrics.HistoryRecorder) Option {
	return func(g *Generator) { g.history = h }
}

// WithStore saves successful images and metadata into s.
func WithStore(s *ImageStore) Option {
	return func(g *Generator) { g.store = s }
}

// WithEvents publishes lifecycle events to sink.
func WithEvents(sink EventSink) Option {
	return func(g *Generator) { g.events = sink }
}

// WithRecordSink sends every finished generation to sink.
func WithRecordSink(sink RecordSink) Option {
	return func(g *Generator) { g.records = sink }
}

// WithMetrics reports generation counters to m.
func WithMetrics(m MetricsObserver) Option {
	return func(g *Generator) { g.metrics = m }
}

// OperationGate tracks in-flight generations so shutdown can wait for
// them. WrapOperation returns an error without calling fn once shutdown
// has begun.
type OperationGate interface {
	WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error
}

// WithGate runs every backend call through gate.
func WithGate(gate OperationGate) Option {
	return func(g *Generator) { g.gate = gate }
}

// Generator runs generations against one backend.
//
// Thread Safety: Generator is safe for concurrent use. At most
// MaxConcurrent backend calls run at once; the rest wait.
type Generator struct {
	backend Backend
	table   *styles.Table
	cfg     GeneratorConfig
	sem     *semaphore.Weighted
	logger  *logging.Logger

	history metrics.HistoryRecorder
	store   *ImageStore
	events  EventSink
	records RecordSink
	metrics MetricsObserver
	gate    OperationGate
}

// NewGenerator creates a generator. A nil table uses styles.Default().
func NewGenerator(backend Backend, table *styles.Table, cfg GeneratorConfig, opts ...Option) (*Generator, error) {
	if backend == nil {
		return nil, fmt.Errorf("imagegen: backend cannot be nil")
	}
	if table == nil {
		table = styles.Default()
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGeneratorConfig().Timeout
	}

	g := &Generator{
		backend: backend,
		table:   table,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("imagegen")
	return g, nil
}

// Backend returns the backend in use.
func (g *Generator) Backend() Backend { return g.backend }

// Styles returns the style table.
func (g *Generator) Styles() *styles.Table { return g.table }

// Limits returns the sanitizer limits.
func (g *Generator) Limits() params.Limits { return g.cfg.Limits }

// Generate sanitizes req, calls the backend and reports the outcome. It
// never returns an error: every failure is a Result with a status and
// no image.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	id := uuid.New().String()
	log := g.logger.With(zap.String("correlation_id", id[:8]))
	start := time.Now()

	sanitized := params.Sanitize(req.Params, g.cfg.Limits)
	res := &Result{ID: id, Params: sanitized.Params, Warnings: sanitized.Warnings}
	if !sanitized.Valid {
		res.Status = sanitized.Message
		res.Category = CategoryInvalidInput
		log.Info("Generation rejected", zap.String("reason", "empty prompt"))
		return res
	}
	p := sanitized.Params

	style, fellBack := g.table.Resolve(p.Style)
	if fellBack {
		res.addWarning("style", fmt.Sprintf("unknown style %q, using %q", p.Style, style.Label))
	}
	p.Style = style.Label
	prompt, negative := styles.Compose(p.Prompt, style)

	conditioning := p.Conditioning
	if conditioning == ConditioningNone {
		conditioning = ""
	}
	p.Conditioning = conditioning

	var guide []byte
	switch {
	case conditioning != "" && len(req.GuideImage) == 0:
		res.addWarning("conditioning", "no guide image supplied, conditioning ignored")
		conditioning = ""
	case conditioning == "" && len(req.GuideImage) > 0:
		res.addWarning("guide_image", "guide image ignored without a conditioning mode")
	case conditioning != "":
		if c, ok := g.backend.(Conditioner); !ok || !c.SupportsConditioning(conditioning) {
			res.addWarning("conditioning", fmt.Sprintf("%q not supported by the %s backend, ignored", conditioning, g.backend.Name()))
			conditioning = ""
			break
		}
		prepared, err := vision.PrepareGuide(req.GuideImage)
		if err != nil {
			res.Params = p
			return g.fail(log, res, start, prompt, negative, err)
		}
		guide = prepared
	}
	p.Conditioning = conditioning

	p.Seed = params.ResolveSeed32(p.Seed)
	res.Params = p

	fields := logging.GenerationFields{
		Backend:      g.backend.Name(),
		Style:        p.Style,
		Conditioning: conditioning,
		Steps:        p.Steps,
		Guidance:     p.Guidance,
		Width:        p.Width,
		Height:       p.Height,
		Seed:         p.Seed,
	}

	var out *BackendResult
	run := func(ctx context.Context) error {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer g.sem.Release(1)

		g.publish(Event{Type: EventStarted, ID: id, Timestamp: time.Now(), Style: p.Style, Prompt: truncateRunes(p.Prompt, 120)})
		if g.metrics != nil {
			done := g.metrics.GenerationStarted()
			defer done()
		}
		log.Info("Generating image", logging.Generation(fields), logging.PromptField("prompt", p.Prompt, 120))

		genCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		var err error
		out, err = g.backend.Generate(genCtx, BackendRequest{
			Prompt:         prompt,
			NegativePrompt: negative,
			Steps:          p.Steps,
			Guidance:       p.Guidance,
			Width:          p.Width,
			Height:         p.Height,
			Seed:           p.Seed,
			GuideImage:     guide,
			Conditioning:   conditioning,
		})
		if err == nil && (out == nil || len(out.Image) == 0) {
			err = ErrEmptyImage
		}
		if err != nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return err
	}

	var err error
	if g.gate != nil {
		err = g.gate.WrapOperation(ctx, "generate", run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return g.fail(log, res, start, prompt, negative, err)
	}

	if out.Seed >= 0 {
		p.Seed = out.Seed
		res.Params.Seed = out.Seed
	}
	return g.succeed(log, res, start, prompt, negative, out.Image)
}

func (g *Generator) succeed(log *logging.Logger, res *Result, start time.Time, prompt, negative string, raw []byte) *Result {
	p := res.Params
	elapsed := time.Since(start)

	img, decoded := g.normalizeImage(log, raw)
	res.Image = img

	md := &Metadata{
		ID:             res.ID,
		Timestamp:      start.UTC(),
		Style:          p.Style,
		Quality:        p.Quality,
		Prompt:         p.Prompt,
		ComposedPrompt: prompt,
		NegativePrompt: negative,
		Backend:        g.backend.Name(),
		Conditioning:   p.Conditioning,
		Seed:           p.Seed,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Resolution:     Resolution{Width: p.Width, Height: p.Height},
		DurationMs:     elapsed.Milliseconds(),
	}
	if decoded != nil {
		score := vision.QualityScore(decoded)
		md.Score = &score
	}

	if g.store != nil {
		path, err := g.store.SaveImage(res.ID, img, start)
		if err != nil {
			log.Warn("Failed to save generated image", zap.Error(err))
		} else {
			md.ImagePath = path
			res.ImagePath = path
			if g.cfg.SaveMetadata {
				if _, err := g.store.WriteMetadata(path, md); err != nil {
					log.Warn("Failed to write metadata", zap.Error(err))
				}
			}
		}
	}
	res.Metadata = md
	res.Category = CategoryNone
	res.Status = fmt.Sprintf("✅ Imagen generada exitosamente\n📌 Semilla: %d\n🔢 Pasos: %d · 🎚️ Guía: %s",
		p.Seed, p.Steps, formatGuidance(p.Guidance))

	log.Info("Image generated",
		zap.String("backend", g.backend.Name()),
		zap.Int64("seed", p.Seed),
		zap.Duration("duration", elapsed),
		zap.String("image_path", res.ImagePath))

	g.finish(res, metrics.OutcomeSuccess, prompt, negative, elapsed)
	g.publish(Event{
		Type:      EventCompleted,
		ID:        res.ID,
		Timestamp: time.Now(),
		Style:     p.Style,
		Prompt:    truncateRunes(p.Prompt, 120),
		Status:    res.Status,
		ImageName: imageName(res.ImagePath),
		Metadata:  md,
	})
	return res
}

func (g *Generator) fail(log *logging.Logger, res *Result, start time.Time, prompt, negative string, err error) *Result {
	elapsed := time.Since(start)
	res.Image = nil
	res.Category = Classify(err)
	res.Status = StatusFor(res.Category, err)

	log.Warn("Generation failed",
		zap.String("category", string(res.Category)),
		zap.Error(err),
		zap.Duration("duration", elapsed))

	g.finish(res, string(res.Category), prompt, negative, elapsed)
	g.publish(Event{
		Type:      EventFailed,
		ID:        res.ID,
		Timestamp: time.Now(),
		Style:     res.Params.Style,
		Prompt:    truncateRunes(res.Params.Prompt, 120),
		Status:    res.Status,
		Category:  res.Category,
	})
	return res
}

// finish appends the outcome to the history, the record sink and metrics.
func (g *Generator) finish(res *Result, outcome, prompt, negative string, elapsed time.Duration) {
	p := res.Params
	rec := metrics.Record{
		ID:             res.ID,
		Timestamp:      time.Now().UTC(),
		Style:          p.Style,
		Prompt:         p.Prompt,
		ComposedPrompt: prompt,
		NegativePrompt: negative,
		Backend:        g.backend.Name(),
		Conditioning:   p.Conditioning,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Width:          p.Width,
		Height:         p.Height,
		Seed:           p.Seed,
		Duration:       elapsed,
		Outcome:        outcome,
		Status:         res.Status,
		ImagePath:      res.ImagePath,
	}
	if res.Metadata != nil {
		rec.Quality = res.Metadata.Score
	}

	if g.history != nil {
		g.history.Append(rec)
	}
	if g.records != nil {
		g.records.Record(rec)
	}
	if g.metrics != nil {
		g.metrics.ObserveGeneration(g.backend.Name(), p.Style, outcome, elapsed)
	}
}

// normalizeImage decodes raw for scoring and re-encodes non-PNG output as
// PNG. Undecodable output is passed through unchanged.
func (g *Generator) normalizeImage(log *logging.Logger, raw []byte) ([]byte, image.Image) {
	decoded, err := vision.DecodeImage(raw)
	if err != nil {
		log.Warn("Generated image could not be decoded", zap.Error(err))
		return raw, nil
	}
	if sdruntime.IsPNG(raw) {
		return raw, decoded
	}
	png, err := vision.EncodePNG(decoded)
	if err != nil {
		log.Warn("Failed to convert generated image to PNG", zap.Error(err))
		return raw, decoded
	}
	return png, decoded
}

func (g *Generator) publish(ev Event) {
	if g.events != nil {
		g.events.Publish(ev)
	}
}

func (r *Result) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, params.Warning{Field: field, Message: msg})
}

func imageName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
