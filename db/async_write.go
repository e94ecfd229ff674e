package db

import (
	"sync"
	"time"
)

// DefaultQueueCapacity bounds the pending writes of an AsyncWriter.
const DefaultQueueCapacity = 100

// WriteOperation is one queued write.
type WriteOperation struct {
	Data     interface{}
	QueuedAt time.Time
}

// WriteHandler performs a queued write.
type WriteHandler func(op WriteOperation) error

// AsyncWriter runs writes on a background goroutine. Write never blocks:
// when the queue is full or the writer is stopped it returns false and the
// caller writes synchronously instead.
type AsyncWriter struct {
	queue   chan WriteOperation
	handler WriteHandler
	onError func(WriteOperation, error)
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// AsyncWriterConfig configures an AsyncWriter.
type AsyncWriterConfig struct {
	QueueCapacity int
	// OnError is called for every failed write. Optional.
	OnError func(op WriteOperation, err error)
}

// NewAsyncWriter creates a writer with DefaultQueueCapacity.
func NewAsyncWriter(handler WriteHandler) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, AsyncWriterConfig{})
}

// NewAsyncWriterWithConfig creates a writer from config.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	capacity := config.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &AsyncWriter{
		queue:   make(chan WriteOperation, capacity),
		handler: handler,
		onError: config.OnError,
		done:    make(chan struct{}),
	}
}

// Start launches the background goroutine. Calling it again is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case op := <-w.queue:
			w.handle(op)
		case <-w.done:
			// drain what is already queued
			for {
				select {
				case op := <-w.queue:
					w.handle(op)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) handle(op WriteOperation) {
	if err := w.handler(op); err != nil && w.onError != nil {
		w.onError(op, err)
	}
}

// Write queues data. It returns false when the writer is not running or
// the queue is full.
func (w *AsyncWriter) Write(data interface{}) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.started || w.stopped {
		return false
	}

	select {
	case w.queue <- WriteOperation{Data: data, QueuedAt: time.Now()}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

// IsRunning reports whether the writer accepts writes.
func (w *AsyncWriter) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started && !w.stopped
}

// Stop rejects new writes, drains the queue and waits up to timeout.
// It reports whether the drain finished in time. A zero timeout waits
// indefinitely.
func (w *AsyncWriter) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return true
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	if timeout <= 0 {
		<-finished
		return true
	}
	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
