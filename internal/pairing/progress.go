package pairing

import "sync"

type progressTracker struct {
	mu       sync.Mutex
	finished int
	total    int
	fn       ProgressFunc
}

func newProgressTracker(total int, fn ProgressFunc) *progressTracker {
	return &progressTracker{total: total, fn: fn}
}

func (t *progressTracker) done(group string, s Stats) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	t.finished++
	p := Progress{
		Group:      group,
		Done:       t.finished,
		Total:      t.total,
		Candidates: s.Candidates,
		Admitted:   s.Admitted,
	}
	t.mu.Unlock()
	t.fn(p)
}
