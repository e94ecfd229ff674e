package core

import (
	"context"
)

// ShutdownFunc releases one resource during shutdown. It should honour the
// context deadline and be safe to call more than once.
type ShutdownFunc func(ctx context.Context) error
