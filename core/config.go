package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Backend names accepted by BACKEND.
const (
	BackendHosted = "hosted"
	BackendOpenAI = "openai"
	BackendLocal  = "local"
)

// Empty prompt policies accepted by EMPTY_PROMPT_POLICY.
const (
	EmptyPromptReject   = "reject"
	EmptyPromptFallback = "fallback"
)

// Config holds all configuration values
type Config struct {
	// Backend selection
	Backend string

	// Hosted inference API (optional key; absence is reported per generation)
	HFToken  string
	HFAPIURL string
	HFModel  string

	// OpenAI image API
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIImageModel string

	// Local stable-diffusion library
	SDLibraryPath string
	SDModelPath   string
	SDThreads     int
	// SDControlNets maps a conditioning key (lowercase) to a ControlNet model file.
	SDControlNets map[string]string

	// Sanitizer bounds and defaults
	MinSteps          int
	MaxSteps          int
	MinGuidance       float64
	MaxGuidance       float64
	MinSide           int
	MaxSide           int
	MaxPromptChars    int
	EmptyPromptPolicy string
	FallbackPrompt    string
	DefaultSteps      int
	DefaultGuidance   float64
	DefaultSide       int

	// Generation
	GenerationTimeout time.Duration
	MaxConcurrent     int
	OutputDir         string
	SaveMetadata      bool
	HistoryMax        int
	StylesFile        string

	// Persistence
	DatabasePath string
	// DBRetentionDays bounds the generation log; 0 keeps everything.
	DBRetentionDays int

	// Web UI
	Port              int
	WebUIPassword     string
	AllowInsecureHTTP bool

	// Logging
	LogLevel string
	LogFile  string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. Nothing is required: missing API keys surface per generation as
// a configuration status instead of failing startup.
func LoadConfig() (*Config, error) {
	backend := strings.ToLower(GetEnvOrDefault("BACKEND", BackendHosted))
	switch backend {
	case BackendHosted, BackendOpenAI, BackendLocal:
	default:
		return nil, &ConfigError{
			Code:    ErrCodeInvalidBackend,
			Message: fmt.Sprintf("Unknown BACKEND %q", backend),
			Action:  "Set BACKEND to one of: hosted, openai, local",
		}
	}

	hfToken := os.Getenv("HF_TOKEN")
	if hfToken == "" {
		hfToken = os.Getenv("HUGGINGFACEHUB_API_TOKEN") // Legacy support
	}

	cfg := &Config{
		Backend: backend,

		HFToken:  hfToken,
		HFAPIURL: strings.TrimRight(GetEnvOrDefault("HF_API_URL", "https://router.huggingface.co/hf-inference/models"), "/"),
		HFModel:  GetEnvOrDefault("HF_MODEL", "black-forest-labs/FLUX.1-schnell"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_API_BASE_URL"),
		OpenAIImageModel: GetEnvOrDefault("OPENAI_IMAGE_MODEL", "dall-e-3"),

		SDLibraryPath: GetEnvOrDefault("SD_LIBRARY_PATH", "./libgosd.so"),
		SDModelPath:   os.Getenv("SD_MODEL_PATH"),
		SDThreads:     ParseIntEnv("SD_THREADS", 0),
		SDControlNets: parseControlNets(os.Environ()),

		MinSteps:          ParseIntEnv("MIN_STEPS", 10),
		MaxSteps:          ParseIntEnv("MAX_STEPS", 50),
		MinGuidance:       ParseFloat64Env("MIN_GUIDANCE", 1.0),
		MaxGuidance:       ParseFloat64Env("MAX_GUIDANCE", 20.0),
		MinSide:           ParseIntEnv("MIN_SIDE", 512),
		MaxSide:           ParseIntEnv("MAX_SIDE", 1024),
		MaxPromptChars:    ParseIntEnv("MAX_PROMPT_CHARS", 2000),
		EmptyPromptPolicy: strings.ToLower(GetEnvOrDefault("EMPTY_PROMPT_POLICY", EmptyPromptReject)),
		FallbackPrompt:    os.Getenv("FALLBACK_PROMPT"),
		DefaultSteps:      ParseIntEnv("DEFAULT_STEPS", 25),
		DefaultGuidance:   ParseFloat64Env("DEFAULT_GUIDANCE", 7.5),
		DefaultSide:       ParseIntEnv("DEFAULT_SIDE", 1024),

		// 120s matches the slowest hosted cold start we have seen
		GenerationTimeout: ParseDurationEnv("GENERATION_TIMEOUT", 120),
		MaxConcurrent:     ParseIntEnv("MAX_CONCURRENT", 1),
		OutputDir:         GetEnvOrDefault("OUTPUT_DIR", "results"),
		SaveMetadata:      ParseBoolEnv("SAVE_METADATA", true),
		HistoryMax:        ParseIntEnv("HISTORY_MAX", 500),
		StylesFile:        os.Getenv("STYLES_FILE"),

		DatabasePath:    GetEnvOrDefault("DATABASE_PATH", "data/edudiff.db"),
		DBRetentionDays: ParseIntEnv("DB_RETENTION_DAYS", 90),

		Port:              ParseIntEnv("WEBUI_PORT", 7860),
		WebUIPassword:     os.Getenv("WEBUI_PASSWORD"),
		AllowInsecureHTTP: ParseBoolEnv("ALLOW_INSECURE_HTTP", false),

		LogLevel: GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  GetEnvOrDefault("LOG_FILE", "edudiff.log"),
	}

	// DATABASE_PATH= (explicitly empty) disables the generation log
	if v, ok := os.LookupEnv("DATABASE_PATH"); ok && v == "" {
		cfg.DatabasePath = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise make the sanitizer or server
// misbehave.
func (c *Config) Validate() error {
	if c.MinSteps < 1 || c.MinSteps > c.MaxSteps {
		return ErrInvalidRange("MIN_STEPS/MAX_STEPS", fmt.Sprintf("%d..%d", c.MinSteps, c.MaxSteps))
	}
	if c.MinGuidance <= 0 || c.MinGuidance > c.MaxGuidance {
		return ErrInvalidRange("MIN_GUIDANCE/MAX_GUIDANCE", fmt.Sprintf("%.1f..%.1f", c.MinGuidance, c.MaxGuidance))
	}
	if c.MinSide < 64 || c.MinSide > c.MaxSide || c.MinSide%8 != 0 || c.MaxSide%8 != 0 {
		return ErrInvalidRange("MIN_SIDE/MAX_SIDE", fmt.Sprintf("%d..%d (multiples of 8)", c.MinSide, c.MaxSide))
	}
	if c.MaxPromptChars < 1000 || c.MaxPromptChars > 2000 {
		return ErrInvalidRange("MAX_PROMPT_CHARS", fmt.Sprintf("%d (allowed 1000..2000)", c.MaxPromptChars))
	}
	switch c.EmptyPromptPolicy {
	case EmptyPromptReject:
	case EmptyPromptFallback:
		if strings.TrimSpace(c.FallbackPrompt) == "" {
			return ErrMissingConfig("FALLBACK_PROMPT")
		}
	default:
		return ErrInvalidRange("EMPTY_PROMPT_POLICY", c.EmptyPromptPolicy)
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 10 {
		return ErrInvalidRange("MAX_CONCURRENT", fmt.Sprintf("%d (allowed 1..10)", c.MaxConcurrent))
	}
	if c.GenerationTimeout < 10*time.Second {
		return ErrInvalidRange("GENERATION_TIMEOUT", c.GenerationTimeout.String())
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidRange("WEBUI_PORT", fmt.Sprintf("%d", c.Port))
	}
	if c.DBRetentionDays < 0 {
		return ErrInvalidRange("DB_RETENTION_DAYS", fmt.Sprintf("%d", c.DBRetentionDays))
	}
	if c.Backend == BackendLocal && c.SDModelPath == "" {
		return ErrMissingConfig("SD_MODEL_PATH")
	}
	return nil
}

// parseControlNets collects SD_CONTROLNET_<KEY>=<path> entries.
func parseControlNets(environ []string) map[string]string {
	const prefix = "SD_CONTROLNET_"
	nets := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || value == "" {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		if key != "" {
			nets[key] = value
		}
	}
	return nets
}

// ConditioningKeys returns the configured conditioning keys, not including "none".
func (c *Config) ConditioningKeys() []string {
	keys := make([]string, 0, len(c.SDControlNets))
	for k := range c.SDControlNets {
		keys = append(keys, k)
	}
	return keys
}

// HasAPIKey reports whether the selected hosted backend has credentials.
// The local backend never needs one.
func (c *Config) HasAPIKey() bool {
	switch c.Backend {
	case BackendHosted:
		return c.HFToken != ""
	case BackendOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return true
	}
}

// GetHTTPClient returns an HTTP client with the given timeout.
// AllowInsecureHTTP disables TLS verification for self-hosted endpoints.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowInsecureHTTP {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client bounded by the generation timeout.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	return GetHTTPClient(cfg, cfg.GenerationTimeout)
}
