package attempt

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWarnings are the remaining-second marks that trigger an advisory warning.
var DefaultWarnings = []int{300, 60}

type TimerConfig struct {
	// Remaining is the persisted value. It is used only when Resume is set, so a persisted
	// zero resumes an expired attempt instead of restarting it; otherwise Limit is used.
	Remaining int
	Resume    bool
	Limit     int
	// Deadline anchors the countdown to server time when set.
	Deadline     time.Time
	Now          func() time.Time
	Warnings     []int
	WarningsSent []int

	// Persist stores the next value before it is applied.
	Persist   func(ctx context.Context, next int) error
	OnWarning func(remaining int)
	OnExpire  func(ctx context.Context)
}

// Timer counts an attempt down one second per tick.
type Timer struct {
	cfg TimerConfig

	mu        sync.Mutex
	remaining int
	sent      map[int]bool
	expired   bool
	stopped   bool
}

func NewTimer(cfg TimerConfig) *Timer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Warnings == nil {
		cfg.Warnings = DefaultWarnings
	}
	start := cfg.Limit
	if cfg.Resume {
		start = max(cfg.Remaining, 0)
	}
	t := &Timer{cfg: cfg, remaining: start, sent: make(map[int]bool)}
	for _, w := range cfg.WarningsSent {
		t.sent[w] = true
	}
	return t
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// WarningsSent lists the warning marks already emitted.
func (t *Timer) WarningsSent() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.sent))
	for _, w := range t.cfg.Warnings {
		if t.sent[w] {
			out = append(out, w)
		}
	}
	return out
}

// ServerRemaining is the whole seconds left before the deadline, or the counter when unanchored.
func (t *Timer) ServerRemaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.boundLocked(t.remaining)
}

func (t *Timer) boundLocked(v int) int {
	if !t.cfg.Deadline.IsZero() {
		left := int(math.Ceil(t.cfg.Deadline.Sub(t.cfg.Now()).Seconds()))
		if left < v {
			v = left
		}
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Tick advances the countdown by one second. It is a no-op once stopped or expired.
func (t *Timer) Tick(ctx context.Context) {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return
	}
	prev := t.remaining
	next := t.boundLocked(prev - 1)
	t.mu.Unlock()

	if t.cfg.Persist != nil {
		if err := t.cfg.Persist(ctx, next); err != nil {
			log.Warn().Err(err).Int("remaining", next).Msg("persist timer")
		}
	}

	var warnings []int
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.remaining = next
	for _, w := range t.cfg.Warnings {
		if !t.sent[w] && next > 0 && next <= w && prev > w {
			t.sent[w] = true
			warnings = append(warnings, w)
		}
	}
	expire := next == 0
	if expire {
		t.expired = true
	}
	t.mu.Unlock()

	if t.cfg.OnWarning != nil {
		for _, w := range warnings {
			t.cfg.OnWarning(w)
		}
	}
	if expire && t.cfg.OnExpire != nil {
		t.cfg.OnExpire(ctx)
	}
}

// Run ticks on every value from ticks until the timer stops, expires or ctx ends.
func (t *Timer) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			t.Tick(ctx)
			t.mu.Lock()
			done := t.stopped || t.expired
			t.mu.Unlock()
			if done {
				return
			}
		}
	}
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}
