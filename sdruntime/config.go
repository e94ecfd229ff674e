package sdruntime

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"edudiff/core"
)

// LocalConfig describes the native library and the model files it loads.
type LocalConfig struct {
	LibraryPath string
	ModelPath   string
	Threads     int
	// ControlNets maps a conditioning key to a ControlNet model file.
	ControlNets map[string]string
	// TempDir receives the library's output PNGs. Empty means os.TempDir.
	TempDir string
}

// LocalConfigFromCore extracts the local backend settings from cfg.
func LocalConfigFromCore(cfg *core.Config) LocalConfig {
	nets := make(map[string]string, len(cfg.SDControlNets))
	for k, v := range cfg.SDControlNets {
		nets[k] = v
	}
	return LocalConfig{
		LibraryPath: cfg.SDLibraryPath,
		ModelPath:   cfg.SDModelPath,
		Threads:     cfg.SDThreads,
		ControlNets: nets,
	}
}

// EffectiveThreads returns Threads, or the CPU count when unset.
func (c LocalConfig) EffectiveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// ControlNetPath returns the ControlNet file for key. The empty key needs
// no ControlNet and always succeeds.
func (c LocalConfig) ControlNetPath(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	path, ok := c.ControlNets[key]
	if !ok {
		return "", fmt.Errorf("%w: no ControlNet configured for %q", ErrModelNotFound, key)
	}
	return path, nil
}

// Keys returns the configured conditioning keys in sorted order.
func (c LocalConfig) Keys() []string {
	keys := make([]string, 0, len(c.ControlNets))
	for k := range c.ControlNets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckFiles verifies that the model and every ControlNet file exist.
func (c LocalConfig) CheckFiles() error {
	if err := checkModelFile(c.ModelPath); err != nil {
		return err
	}
	for _, key := range c.Keys() {
		if err := checkModelFile(c.ControlNets[key]); err != nil {
			return fmt.Errorf("controlnet %s: %w", key, err)
		}
	}
	return nil
}

func checkModelFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrModelNotFound)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is not a model file", ErrModelLoadFailed, path)
	}
	return nil
}
