package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing  = "ENV_FILE_MISSING"
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodeInvalidRange    = "INVALID_RANGE"
	ErrCodeInvalidBackend  = "INVALID_BACKEND"
	ErrCodeOutputDir       = "OUTPUT_DIR_UNWRITABLE"
	ErrCodeLibraryNotFound = "LIBRARY_NOT_FOUND"
)

// ErrEnvFileMissing returns an error for missing .env file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the values you need",
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case BackendHosted:
		action = "Set HF_TOKEN in your .env file"
	case BackendOpenAI:
		action = "Set OPENAI_API_KEY in your .env file (or use BACKEND=local)"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidRange returns an error for a value outside its accepted range
func ErrInvalidRange(varName, value string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidRange,
		Message: fmt.Sprintf("Invalid value for %s: %s", varName, value),
		Action:  fmt.Sprintf("Fix %s in your .env file or remove it to use the default", varName),
	}
}

// ErrOutputDirUnwritable returns an error when OUTPUT_DIR cannot be written
func ErrOutputDirUnwritable(dir string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeOutputDir,
		Message: fmt.Sprintf("Output directory %s is not writable: %s", dir, reason),
		Action:  "Set OUTPUT_DIR to a writable directory",
	}
}

// ErrLibraryNotFound returns an error when the local diffusion library is missing
func ErrLibraryNotFound(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeLibraryNotFound,
		Message: fmt.Sprintf("Stable diffusion library not found: %s", path),
		Action:  "Build libgosd and set SD_LIBRARY_PATH, or use BACKEND=hosted",
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
