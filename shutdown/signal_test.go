package shutdown

import (
	"sync"
	"testing"
)

func TestSignalCounter_ForcesAtThreshold(t *testing.T) {
	forced := 0
	c := NewSignalCounter(2, func() { forced++ })

	if got := c.Increment(); got != 1 {
		t.Errorf("Increment() = %d, want 1", got)
	}
	if forced != 0 {
		t.Error("forced after the first signal")
	}
	c.Increment()
	if forced != 1 {
		t.Errorf("forced = %d after the second signal, want 1", forced)
	}
}

func TestSignalCounter_NilCallback(t *testing.T) {
	c := NewSignalCounter(1, nil)
	c.Increment()
	c.Increment()
	if c.Count() != 2 {
		t.Errorf("Count() = %d, want 2", c.Count())
	}
}

func TestSignalCounter_Concurrent(t *testing.T) {
	c := NewSignalCounter(1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment()
		}()
	}
	wg.Wait()
	if c.Count() != 100 {
		t.Errorf("Count() = %d, want 100", c.Count())
	}
}
