package transfer

import (
	"sync"
	"time"
)

// ProgressTracker accumulates per-file transfer statistics and throttles
// callback delivery to roughly one update per interval, generalized from
// zmodem/progress.go's ProgressTracker to cover all four protocols.
type ProgressTracker struct {
	mu         sync.Mutex
	rec        *FileRecord
	started    time.Time
	lastUpdate time.Time
	lastBytes  int64
	interval   time.Duration
	onUpdate   func(rec *FileRecord, bytes, total int64, rate float64)
}

// NewProgressTracker returns a tracker that calls onUpdate at most once
// per interval.
func NewProgressTracker(interval time.Duration, onUpdate func(rec *FileRecord, bytes, total int64, rate float64)) *ProgressTracker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ProgressTracker{interval: interval, onUpdate: onUpdate}
}

// Start begins tracking rec.
func (p *ProgressTracker) Start(rec *FileRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = rec
	p.started = time.Now()
	p.lastUpdate = p.started
	p.lastBytes = 0
}

// Update records that bytesMoved total bytes have now moved for the
// file being tracked, invoking onUpdate if the interval has elapsed.
func (p *ProgressTracker) Update(bytesMoved int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.lastUpdate) < p.interval {
		return
	}
	elapsed := now.Sub(p.started).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(bytesMoved) / elapsed
	}
	p.lastUpdate = now
	p.lastBytes = bytesMoved
	if p.onUpdate != nil {
		p.onUpdate(p.rec, bytesMoved, p.rec.Size, rate)
	}
}

// Complete reports the final state unconditionally, bypassing the
// interval throttle.
func (p *ProgressTracker) Complete(bytesMoved int64) {
	p.mu.Lock()
	rec := p.rec
	started := p.started
	p.mu.Unlock()
	if rec == nil || p.onUpdate == nil {
		return
	}
	elapsed := time.Since(started).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(bytesMoved) / elapsed
	}
	p.onUpdate(rec, bytesMoved, rec.Size, rate)
}
