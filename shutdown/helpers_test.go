package shutdown

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"edudiff/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	return logging.NewFromZap(zaptest.NewLogger(t))
}
