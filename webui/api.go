package webui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"edudiff/imagegen"
	"edudiff/logging"
	"edudiff/metrics"
	"edudiff/params"
	"edudiff/styles"
	"edudiff/vision"
)

// ImageGenerator is the slice of *imagegen.Generator the API needs.
type ImageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request) *imagegen.Result
	Backend() imagegen.Backend
	Styles() *styles.Table
	Limits() params.Limits
}

// HistoryReader is the read side of *metrics.History.
type HistoryReader interface {
	Recent(limit int) []metrics.Record
	RecentSuccessful(limit int) []metrics.Record
	StyleCounts() map[string]int
	Summary() metrics.Summary
	Len() int
}

// APIConfig configures the JSON API.
type APIConfig struct {
	DefaultHistoryLimit int
	MaxHistoryLimit     int
	MaxUploadBytes      int64
	// Conditioning lists the selectable conditioning keys, "none" first.
	Conditioning []string
	Grid         vision.GridOptions
}

// DefaultAPIConfig returns 20/100 history limits and the default grid.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		DefaultHistoryLimit: 20,
		MaxHistoryLimit:     100,
		MaxUploadBytes:      DefaultMaxUploadBytes,
		Conditioning:        []string{imagegen.ConditioningNone},
		Grid:                vision.DefaultGridOptions(),
	}
}

// API serves the /api routes and saved images.
type API struct {
	generator ImageGenerator
	history   HistoryReader
	store     *imagegen.ImageStore
	hub       *StatusHub
	config    APIConfig
	logger    *logging.Logger
	startedAt time.Time
}

// NewAPI creates the API. store and hub may be nil.
func NewAPI(generator ImageGenerator, history HistoryReader, store *imagegen.ImageStore, hub *StatusHub, config APIConfig, logger *logging.Logger) *API {
	def := DefaultAPIConfig()
	if config.DefaultHistoryLimit <= 0 {
		config.DefaultHistoryLimit = def.DefaultHistoryLimit
	}
	if config.MaxHistoryLimit <= 0 {
		config.MaxHistoryLimit = def.MaxHistoryLimit
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = def.MaxUploadBytes
	}
	if len(config.Conditioning) == 0 {
		config.Conditioning = def.Conditioning
	}
	if config.Grid.Rows <= 0 || config.Grid.Cols <= 0 {
		config.Grid = def.Grid
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &API{
		generator: generator,
		history:   history,
		store:     store,
		hub:       hub,
		config:    config,
		logger:    logger.Named("api"),
		startedAt: time.Now(),
	}
}

// RegisterRoutes mounts the API on mux. generate wraps the generation
// handler, e.g. with a rate limiter.
func (api *API) RegisterRoutes(mux *http.ServeMux, generate func(http.Handler) http.Handler) {
	var gen http.Handler = http.HandlerFunc(api.HandleGenerate)
	if generate != nil {
		gen = generate(gen)
	}
	mux.Handle("POST /api/generate", gen)
	mux.HandleFunc("GET /api/styles", api.HandleStyles)
	mux.HandleFunc("GET /api/history", api.HandleHistory)
	mux.HandleFunc("GET /api/stats", api.HandleStats)
	mux.HandleFunc("GET /api/suggestions", api.HandleSuggestions)
	mux.HandleFunc("POST /api/validate", api.HandleValidate)
	mux.HandleFunc("GET /api/grid", api.HandleGrid)
	mux.HandleFunc("GET /images/{name}", api.HandleImage)
}

// GenerateResponse is the /api/generate body. Image is base64 PNG, or
// null when nothing was produced.
type GenerateResponse struct {
	ID       string             `json:"id"`
	Status   string             `json:"status"`
	Image    *string            `json:"image"`
	ImageURL string             `json:"image_url,omitempty"`
	Metadata *imagegen.Metadata `json:"metadata"`
	Warnings []params.Warning   `json:"warnings"`
	Category string             `json:"category"`
}

// HandleGenerate runs one generation under the request context. Every
// generation outcome, failures included, is a 200 with a status string;
// only unreadable requests get a 4xx.
func (api *API) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.config.MaxUploadBytes)

	req, err := decodeGenerateRequest(r, api.config.MaxUploadBytes)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "La solicitud es demasiado grande")
		case errors.Is(err, errUnsupportedMedia):
			writeError(w, http.StatusUnsupportedMediaType, "Content-Type debe ser multipart/form-data o application/json")
		default:
			api.logger.Debug("Malformed generate request", zap.Error(err))
			writeError(w, http.StatusBadRequest, "Solicitud mal formada")
		}
		return
	}

	res := api.generator.Generate(r.Context(), req)

	resp := GenerateResponse{
		ID:       res.ID,
		Status:   res.Status,
		Metadata: res.Metadata,
		Warnings: res.Warnings,
		Category: string(res.Category),
	}
	if resp.Warnings == nil {
		resp.Warnings = []params.Warning{}
	}
	if res.Succeeded() {
		encoded := base64.StdEncoding.EncodeToString(res.Image)
		resp.Image = &encoded
	}
	if res.ImagePath != "" {
		resp.ImageURL = "/images/" + filepath.Base(res.ImagePath)
	}

	writeJSON(w, http.StatusOK, resp)
}

// StylesResponse describes the form options.
type StylesResponse struct {
	Styles         []styles.StyleEntry    `json:"styles"`
	DefaultStyle   string                 `json:"default_style"`
	Presets        []styles.QualityPreset `json:"quality_presets"`
	DefaultPreset  string                 `json:"default_quality"`
	Conditioning   []string               `json:"conditioning"`
	Backend        string                 `json:"backend"`
	Defaults       ParamDefaults          `json:"defaults"`
	Limits         ParamLimits            `json:"limits"`
	MaxPromptChars int                    `json:"max_prompt_chars"`
}

// ParamDefaults are the form's initial values.
type ParamDefaults struct {
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Seed     int64   `json:"seed"`
}

// ParamLimits are the slider bounds.
type ParamLimits struct {
	MinSteps    int     `json:"min_steps"`
	MaxSteps    int     `json:"max_steps"`
	MinGuidance float64 `json:"min_guidance"`
	MaxGuidance float64 `json:"max_guidance"`
	MinSide     int     `json:"min_side"`
	MaxSide     int     `json:"max_side"`
}

// HandleStyles lists styles, presets, defaults and limits.
func (api *API) HandleStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.stylesResponse())
}

func (api *API) stylesResponse() StylesResponse {
	table := api.generator.Styles()
	limits := api.generator.Limits()
	return StylesResponse{
		Styles:        table.Entries(),
		DefaultStyle:  table.First().Label,
		Presets:       styles.Presets(),
		DefaultPreset: styles.DefaultPresetLabel,
		Conditioning:  api.config.Conditioning,
		Backend:       api.generator.Backend().Name(),
		Defaults: ParamDefaults{
			Steps:    limits.DefaultSteps,
			Guidance: limits.DefaultGuidance,
			Width:    limits.DefaultSide,
			Height:   limits.DefaultSide,
			Seed:     -1,
		},
		Limits: ParamLimits{
			MinSteps:    limits.MinSteps,
			MaxSteps:    limits.MaxSteps,
			MinGuidance: limits.MinGuidance,
			MaxGuidance: limits.MaxGuidance,
			MinSide:     limits.MinSide,
			MaxSide:     limits.MaxSide,
		},
		MaxPromptChars: limits.MaxPromptChars,
	}
}

// HistoryResponse is the /api/history body, newest first.
type HistoryResponse struct {
	Records []metrics.Record `json:"records"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
}

// HandleHistory returns ?limit=n recent records (default 20, max 100).
func (api *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := api.config.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit debe ser un entero positivo")
			return
		}
		limit = n
	}
	if limit > api.config.MaxHistoryLimit {
		limit = api.config.MaxHistoryLimit
	}

	records := api.history.Recent(limit)
	writeJSON(w, http.StatusOK, HistoryResponse{
		Records: records,
		Count:   len(records),
		Total:   api.history.Len(),
	})
}

// StatsResponse is the /api/stats body.
type StatsResponse struct {
	Summary     metrics.Summary `json:"summary"`
	StyleCounts map[string]int  `json:"style_counts"`
	AvgDuration string          `json:"avg_duration"`
	Uptime      string          `json:"uptime"`
	Clients     int             `json:"clients"`
}

// HandleStats returns per-style counts and session totals.
func (api *API) HandleStats(w http.ResponseWriter, r *http.Request) {
	summary := api.history.Summary()
	resp := StatsResponse{
		Summary:     summary,
		StyleCounts: api.history.StyleCounts(),
		AvgDuration: FormatDuration(summary.AvgDuration),
		Uptime:      FormatDuration(time.Since(api.startedAt).Truncate(time.Second)),
	}
	if api.hub != nil {
		resp.Clients = api.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SuggestionsResponse is the /api/suggestions body.
type SuggestionsResponse struct {
	Topic       string   `json:"topic"`
	Category    string   `json:"category"`
	Suggestions []string `json:"suggestions"`
}

// HandleSuggestions returns prompt ideas for ?topic=.
func (api *API) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		writeError(w, http.StatusBadRequest, "Falta el parámetro topic")
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{
		Topic:       topic,
		Category:    styles.DetectCategory(topic),
		Suggestions: styles.Suggestions(topic),
	})
}

// ValidateResponse is the /api/validate body.
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// HandleValidate runs the strict prompt check behind the live form hint.
// It accepts {"prompt": "..."} or a form field.
func (api *API) HandleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var prompt string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Solicitud mal formada")
			return
		}
		prompt = body.Prompt
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Solicitud mal formada")
			return
		}
		prompt = r.PostFormValue(fieldPrompt)
	}

	valid, msg := params.ValidatePrompt(prompt)
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: valid, Message: msg})
}

// HandleGrid renders the most recent successful images as one PNG.
func (api *API) HandleGrid(w http.ResponseWriter, r *http.Request) {
	if api.store == nil {
		writeError(w, http.StatusNotFound, "El guardado de imágenes está desactivado")
		return
	}

	opts := api.config.Grid
	records := api.history.RecentSuccessful(opts.Rows * opts.Cols)
	images := make([]image.Image, 0, len(records))
	for _, rec := range records {
		img, err := api.loadImage(filepath.Base(rec.ImagePath))
		if err != nil {
			api.logger.Debug("Skipping image in grid", zap.String("image", rec.ImagePath), zap.Error(err))
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		writeError(w, http.StatusNotFound, "Todavía no hay imágenes generadas")
		return
	}

	grid, err := vision.Grid(images, opts)
	if err != nil {
		api.logger.Error("Failed to build grid", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "No se pudo crear la galería")
		return
	}
	data, err := vision.EncodePNG(grid)
	if err != nil {
		api.logger.Error("Failed to encode grid", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "No se pudo crear la galería")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (api *API) loadImage(name string) (image.Image, error) {
	path, err := api.store.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return vision.DecodeImage(data)
}

// HandleImage serves a saved image by bare file name.
func (api *API) HandleImage(w http.ResponseWriter, r *http.Request) {
	if api.store == nil {
		http.NotFound(w, r)
		return
	}

	path, err := api.store.Path(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Nombre de imagen no válido")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}

// ErrorResponse is the body of every non-200 API answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	// Headers are already out; nothing useful to do on failure.
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
