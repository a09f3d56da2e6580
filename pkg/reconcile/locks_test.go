package reconcile

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubjectLocksSerializeSameSubject(t *testing.T) {
	locks := NewSubjectLocks()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(42)
			defer unlock()
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 0, locks.Held())
}

func TestSubjectLocksIndependentSubjects(t *testing.T) {
	locks := NewSubjectLocks()
	unlockA := locks.Lock(1)

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different subject blocked")
	}

	assert.Equal(t, 1, locks.Held())
	unlockA()
	unlockA()
	assert.Equal(t, 0, locks.Held())
}
