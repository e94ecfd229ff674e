package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"edudiff/core"
	"edudiff/core/validation"
	"edudiff/logging"
	"edudiff/shutdown"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("edudiff %s\n", core.GetVersionInfo())
			return
		case "service":
			os.Exit(HandleServiceCommand(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	cfg, logger, code := bootstrap()
	if code != core.ExitCodeSuccess {
		os.Exit(code)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Printf("Failed to sync logger: %v\n", syncErr)
		}
	}()

	m := shutdown.NewManager(logger, shutdown.WithTimeout(shutdownTimeout(cfg)))
	m.Start()

	if err := serve(m, cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(core.ExitCodeError)
	}
	logger.Info("Goodbye!")
}

// bootstrap loads the configuration, builds the logger and runs the startup
// checks. A non-zero code means the caller should exit with it.
func bootstrap() (*core.Config, *logging.Logger, int) {
	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if _, ok := core.IsConfigError(err); ok {
			return nil, nil, core.ExitCodeConfigError
		}
		return nil, nil, core.ExitCodeError
	}

	isDevelopment := os.Getenv("DEV_MODE") == "true"
	logger, err := newLogger(cfg, isDevelopment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return nil, nil, core.ExitCodeError
	}

	logger.Info("Starting EduDiff",
		zap.String("version", core.GetVersionInfo()),
		zap.String("backend", cfg.Backend),
		zap.Int("port", cfg.Port),
		zap.String("output_dir", cfg.OutputDir),
		zap.Duration("generation_timeout", cfg.GenerationTimeout),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
		zap.Bool("dev_mode", isDevelopment),
	)

	if code := runStartupValidation(logger, cfg); code != core.ExitCodeSuccess {
		_ = logger.Sync()
		return nil, nil, code
	}
	return cfg, logger, core.ExitCodeSuccess
}

func newLogger(cfg *core.Config, isDevelopment bool) (*logging.Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if isDevelopment {
		defaultLevel = zapcore.DebugLevel
	}
	level := logging.ParseLogLevelString(cfg.LogLevel, defaultLevel)
	return logging.NewLoggerWithOptions(logging.Options{
		Development: isDevelopment,
		Level:       &level,
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
	})
}

// shutdownTimeout leaves room for a generation that started just before
// the signal.
func shutdownTimeout(cfg *core.Config) time.Duration {
	return cfg.GenerationTimeout + 30*time.Second
}

// runStartupValidation checks the backend configuration before anything
// heavy is loaded.
//
// Returns the appropriate exit code:
//   - ExitCodeSuccess (0) if all validations pass
//   - ExitCodeConfigError (2) if any validation fails
func runStartupValidation(logger *logging.Logger, cfg *core.Config) int {
	logger.Info("Starting startup validation...")

	suite := validation.NewValidationSuite(cfg).
		WithShowProgress(true).
		WithSkipNetwork(os.Getenv("SKIP_NETWORK_CHECKS") == "true")

	result := suite.Validate()

	for _, step := range result.Steps {
		switch step.Status {
		case validation.StepFailed:
			logger.Error("Validation step failed",
				zap.String("step", step.Name),
				zap.String("message", step.Message),
				zap.Error(step.Error),
			)
		case validation.StepWarning:
			logger.Warn("Validation warning",
				zap.String("step", step.Name),
				zap.String("message", step.Message),
			)
		}
	}

	if !result.Success {
		logger.Error("Configuration validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
		)
		return core.ExitCodeConfigError
	}

	logger.Info("Configuration validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Int("warnings", result.Warnings),
		zap.Duration("duration", result.Duration),
	)
	return core.ExitCodeSuccess
}
