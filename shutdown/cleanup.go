package shutdown

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"edudiff/core"
	"edudiff/logging"
)

// Closer adapts an io.Closer.
func Closer(c io.Closer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		return c.Close()
	}
}

// CleanupPartialWrites removes "*.tmp" files left in dir by image or
// metadata writes that were interrupted. Failures are logged, never
// returned.
func CleanupPartialWrites(logger *logging.Logger, dir string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
		if err != nil || len(matches) == 0 {
			return nil
		}

		removed := 0
		for _, path := range matches {
			if ctx.Err() != nil {
				logger.Warn("Cleanup interrupted",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed),
				)
				return nil
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("Failed to remove partial file", zap.String("file", filepath.Base(path)), zap.Error(err))
				continue
			}
			removed++
		}

		logger.Info("Removed partial files", zap.String("dir", dir), zap.Int("count", removed))
		return nil
	}
}
