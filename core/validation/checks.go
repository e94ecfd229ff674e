package validation

import (
	"fmt"

	"edudiff/core"
)

// CheckResult is the outcome of a single configuration check.
type CheckResult struct {
	Status  StepStatus
	Message string
	Error   error
}

func passed(msg string) CheckResult { return CheckResult{Status: StepPassed, Message: msg} }

func warned(msg string, err error) CheckResult {
	return CheckResult{Status: StepWarning, Message: msg, Error: err}
}

func failed(msg string, err error) CheckResult {
	return CheckResult{Status: StepFailed, Message: msg, Error: err}
}

// MinFreeOutputBytes is the free space below which the disk check warns.
const MinFreeOutputBytes int64 = 500 * 1024 * 1024

// ConfigChecker inspects a loaded configuration against the local machine.
type ConfigChecker struct {
	cfg     *core.Config
	envPath string
}

// NewConfigChecker creates a ConfigChecker reading .env from the working directory.
func NewConfigChecker(cfg *core.Config) *ConfigChecker {
	return &ConfigChecker{cfg: cfg, envPath: ".env"}
}

// WithEnvPath sets a custom path for the .env file.
func (c *ConfigChecker) WithEnvPath(path string) *ConfigChecker {
	c.envPath = path
	return c
}

// CheckEnvFile warns when no .env file is present; plain environment
// variables are a valid way to configure the service.
func (c *ConfigChecker) CheckEnvFile() CheckResult {
	if err := CheckFileExists(c.envPath); err != nil {
		return warned("No .env file, using process environment", core.ErrEnvFileMissing(c.envPath))
	}
	return passed("Environment file found")
}

// CheckCredentials warns when the selected hosted backend has no API key.
func (c *ConfigChecker) CheckCredentials() CheckResult {
	if c.cfg.Backend == core.BackendLocal {
		return passed("Local backend needs no API key")
	}
	if !c.cfg.HasAPIKey() {
		return warned("Generations will report a configuration error", core.ErrMissingAuth(c.cfg.Backend))
	}
	return passed(fmt.Sprintf("API key present for %s backend", c.cfg.Backend))
}

// CheckOutputDir fails when generated images cannot be saved.
func (c *ConfigChecker) CheckOutputDir() CheckResult {
	if err := CheckDirWritable(c.cfg.OutputDir); err != nil {
		return failed("Cannot save generated images", core.ErrOutputDirUnwritable(c.cfg.OutputDir, err.Error()))
	}
	return passed(fmt.Sprintf("Writing images to %s", c.cfg.OutputDir))
}

// CheckDiskSpace warns when the output directory is nearly full.
func (c *ConfigChecker) CheckDiskSpace() CheckResult {
	info, err := GetDiskSpace(c.cfg.OutputDir)
	if err != nil {
		return warned("Could not determine free space", err)
	}
	if info.Free < MinFreeOutputBytes {
		return warned(fmt.Sprintf("Only %s free", info.FreeFormatted), &DiskSpaceError{
			Path:      info.Path,
			Required:  MinFreeOutputBytes,
			Available: info.Free,
			Message:   fmt.Sprintf("low disk space at %s: %s free", info.Path, info.FreeFormatted),
		})
	}
	return passed(fmt.Sprintf("%s free", info.FreeFormatted))
}

// CheckLocalLibrary verifies the shared library and model files exist when
// the local backend is selected.
func (c *ConfigChecker) CheckLocalLibrary() CheckResult {
	if c.cfg.Backend != core.BackendLocal {
		return CheckResult{Status: StepSkipped, Message: "Not using local backend"}
	}
	if err := CheckFileExists(c.cfg.SDLibraryPath); err != nil {
		return failed("Shared library missing", core.ErrLibraryNotFound(c.cfg.SDLibraryPath))
	}
	if err := CheckFileExists(c.cfg.SDModelPath); err != nil {
		return failed("Model file missing", fmt.Errorf("SD_MODEL_PATH: %w", err))
	}
	for key, path := range c.cfg.SDControlNets {
		if err := CheckFileExists(path); err != nil {
			return failed(fmt.Sprintf("ControlNet %q missing", key), fmt.Errorf("SD_CONTROLNET_%s: %w", key, err))
		}
	}
	return passed(fmt.Sprintf("%d conditioning model(s) configured", len(c.cfg.SDControlNets)))
}
