package reconcile

import "sync"

// SubjectLocks hands out one mutex per subject so that the debounce drain,
// the sweep and manual requests never reconcile the same subject at once.
// Entries are dropped when no holder or waiter remains.
type SubjectLocks struct {
	mu    sync.Mutex
	locks map[uint64]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func NewSubjectLocks() *SubjectLocks {
	return &SubjectLocks{locks: make(map[uint64]*subjectLock)}
}

// Lock blocks until subject is free and returns the release function.
func (l *SubjectLocks) Lock(subject uint64) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[subject]
	if !ok {
		e = &subjectLock{}
		l.locks[subject] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, subject)
			}
			l.mu.Unlock()
		})
	}
}

// Held returns the number of subjects currently locked or waited on.
func (l *SubjectLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
