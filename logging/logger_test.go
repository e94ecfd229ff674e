package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// nopSyncer discards console output so tests don't spam stdout.
type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

func readLogLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", scanner.Text())
		}
		lines = append(lines, entry)
	}
	return lines
}

func TestNewLoggerWithOptions_WritesJSONFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "edudiff.log")

	logger, err := NewLoggerWithOptions(Options{FilePath: logPath, Console: nopSyncer{}})
	if err != nil {
		t.Fatalf("NewLoggerWithOptions() error = %v", err)
	}

	logger.Debug("hidden at info level")
	logger.Info("image generated", zap.Int("steps", 25))
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	lines := readLogLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1", len(lines))
	}
	if lines[0][FieldMessage] != "image generated" {
		t.Errorf("message = %v", lines[0][FieldMessage])
	}
	if lines[0][FieldLevel] != "info" {
		t.Errorf("level = %v, want info", lines[0][FieldLevel])
	}
	if logger.LogFilePath() != logPath {
		t.Errorf("LogFilePath() = %q, want %q", logger.LogFilePath(), logPath)
	}
}

func TestNewLoggerWithOptions_LevelOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "edudiff.log")
	level := zapcore.WarnLevel

	logger, err := NewLoggerWithOptions(Options{
		Development: true,
		Level:       &level,
		FilePath:    logPath,
		Console:     nopSyncer{},
	})
	if err != nil {
		t.Fatalf("NewLoggerWithOptions() error = %v", err)
	}
	if !logger.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}

	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	lines := readLogLines(t, logPath)
	if len(lines) != 1 || lines[0][FieldMessage] != "kept" {
		t.Errorf("lines = %v, want only the warning", lines)
	}
}

func TestNewLogger_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLogger(false, filepath.Join(blocker, "app.log")); err == nil {
		t.Error("NewLogger() with a file as parent dir should fail")
	}
}

func TestLogger_Redaction(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core))

	logger.Info("calling backend",
		zap.String("hf_token", "hf_abcdefghijklmnopqrstuvwxyz"),
		zap.String("detail", "server said: bad bearer abcdefghijklmnopqrstuvwxyz0123"),
		zap.String("prompt", "Ciclo del agua"),
		zap.Error(errors.New("401 for sk-abcdefghijklmnopqrstuvwx")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()

	if fields["hf_token"] != RedactedPlaceholder {
		t.Errorf("hf_token = %v, want redacted", fields["hf_token"])
	}
	if strings.Contains(fields["detail"].(string), "abcdefghijklmnopqrstuvwxyz0123") {
		t.Errorf("detail not redacted: %v", fields["detail"])
	}
	if fields["prompt"] != "Ciclo del agua" {
		t.Errorf("prompt = %v, want unchanged", fields["prompt"])
	}
	if strings.Contains(fields["error"].(string), "sk-") {
		t.Errorf("error not redacted: %v", fields["error"])
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core)).
		Named("imagegen").
		With(zap.String("correlation_id", "abc12345"), zap.String("api_key", "secret-value"))

	logger.Warn("slow backend")

	entry := logs.All()[0]
	if entry.LoggerName != "imagegen" {
		t.Errorf("LoggerName = %q, want imagegen", entry.LoggerName)
	}
	fields := entry.ContextMap()
	if fields["correlation_id"] != "abc12345" {
		t.Errorf("correlation_id = %v", fields["correlation_id"])
	}
	if fields["api_key"] != RedactedPlaceholder {
		t.Errorf("api_key = %v, want redacted", fields["api_key"])
	}
}

func TestLogger_ZaptestAndNop(t *testing.T) {
	logger := NewFromZap(zaptest.NewLogger(t))
	logger.Debug("visible in -v output")

	nop := NewNop()
	nop.Error("discarded")
	if err := nop.Sync(); err != nil {
		t.Errorf("Nop Sync() error = %v", err)
	}

	var nilLogger *Logger
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil Sync() error = %v", err)
	}
}

func TestGenerationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	logger.Info("done", Generation(GenerationFields{
		Backend:  "hosted",
		Style:    "📊 Infografía Profesional",
		Steps:    25,
		Guidance: 7.5,
		Width:    1024,
		Height:   1024,
		Seed:     42,
		Duration: 1500 * time.Millisecond,
	}), PromptField("prompt", "abcdefghij", 4))

	fields := logs.All()[0].ContextMap()
	gen, ok := fields["generation"].(map[string]interface{})
	if !ok {
		t.Fatalf("generation field = %T, want map", fields["generation"])
	}
	if gen["steps"] != 25 || gen["seed"] != int64(42) {
		t.Errorf("generation = %v", gen)
	}
	if _, ok := gen["conditioning"]; ok {
		t.Error("empty conditioning should be omitted")
	}
	if fields["prompt"] != "abcd…" {
		t.Errorf("prompt = %q, want truncated", fields["prompt"])
	}
}
