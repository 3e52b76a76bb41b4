package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-engine/internal/domain"
)

// StateStore persists in-flight attempt state keyed by (assessment, candidate).
type StateStore interface {
	Load(ctx context.Context, assessmentID, candidateID string) (domain.Attempt, error)
	Save(ctx context.Context, a domain.Attempt) error
	Delete(ctx context.Context, assessmentID, candidateID string) error
}

// Hooks are invoked from the goroutine that drives the session.
type Hooks struct {
	OnWarning func(remaining int)
	// OnExpire runs once when the countdown reaches zero.
	OnExpire func(ctx context.Context, s *Session)
}

// Session binds the timer, answer store and integrity monitor of one attempt.
// It is not safe for concurrent use; a single goroutine should drive it.
type Session struct {
	def       domain.AssessmentDefinition
	candidate string
	startedAt time.Time
	deadline  time.Time
	state     StateStore
	submitted bool

	timer   *Timer
	store   *Store
	monitor *Monitor

	pendingRemaining *int
}

// Open resumes the persisted attempt for the candidate or starts a new one.
func Open(ctx context.Context, def domain.AssessmentDefinition, candidateID string, state StateStore, now func() time.Time, hooks Hooks) (*Session, error) {
	if now == nil {
		now = time.Now
	}
	current, err := state.Load(ctx, def.ID, candidateID)
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		started := now()
		current = domain.Attempt{
			AssessmentID:     def.ID,
			CandidateID:      candidateID,
			StartedAt:        started,
			Deadline:         started.Add(def.TimeLimit()),
			RemainingSeconds: def.TimeLimitSeconds(),
			Answers:          make(domain.Answers),
		}
	case err != nil:
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if current.Submitted {
		return nil, domain.ErrAttemptSubmitted
	}

	s := &Session{
		def:       def,
		candidate: candidateID,
		startedAt: current.StartedAt,
		deadline:  current.Deadline,
		state:     state,
	}
	s.store = NewStore(def, current.Answers, s.save)
	s.monitor = NewMonitor(def.Security, current.Offenses, current.ActiveQuestion, current.RecordingRef, s.save)
	s.timer = NewTimer(TimerConfig{
		Remaining:    current.RemainingSeconds,
		Resume:       true,
		Limit:        def.TimeLimitSeconds(),
		Deadline:     current.Deadline,
		Now:          now,
		WarningsSent: current.WarningsSent,
		Persist:      s.saveRemaining,
		OnWarning:    hooks.OnWarning,
		OnExpire: func(ctx context.Context) {
			if hooks.OnExpire != nil {
				hooks.OnExpire(ctx, s)
			}
		},
	})

	if err := s.save(ctx); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	return s, nil
}

func (s *Session) Definition() domain.AssessmentDefinition { return s.def }
func (s *Session) CandidateID() string                     { return s.candidate }
func (s *Session) Timer() *Timer                           { return s.timer }
func (s *Session) Store() *Store                           { return s.store }
func (s *Session) Monitor() *Monitor                       { return s.monitor }

// Snapshot captures the attempt as it would be persisted now.
func (s *Session) Snapshot() domain.Attempt {
	remaining := s.timer.Remaining()
	if s.pendingRemaining != nil {
		remaining = *s.pendingRemaining
	}
	return domain.Attempt{
		AssessmentID:     s.def.ID,
		CandidateID:      s.candidate,
		StartedAt:        s.startedAt,
		Deadline:         s.deadline,
		RemainingSeconds: remaining,
		Answers:          s.store.Answers(),
		Offenses:         s.monitor.Offenses(),
		RecordingRef:     s.monitor.RecordingRef(),
		WarningsSent:     s.timer.WarningsSent(),
		ActiveQuestion:   s.monitor.ActiveQuestion(),
		Submitted:        s.submitted,
	}
}

// MarkSubmitted stops the countdown; later ticks and answers are ignored by callers.
func (s *Session) MarkSubmitted() {
	s.submitted = true
	s.timer.Stop()
}

func (s *Session) Submitted() bool { return s.submitted }

// Close stops the countdown without touching persisted state so the attempt can resume.
func (s *Session) Close() {
	s.timer.Stop()
}

func (s *Session) save(ctx context.Context) error {
	if s.store == nil || s.monitor == nil || s.timer == nil {
		return nil
	}
	return s.state.Save(ctx, s.Snapshot())
}

func (s *Session) saveRemaining(ctx context.Context, next int) error {
	s.pendingRemaining = &next
	defer func() { s.pendingRemaining = nil }()
	return s.save(ctx)
}
