package attempt

import (
	"context"

	"assessment-engine/internal/domain"
	"github.com/rs/zerolog/log"
)

// Monitor tallies integrity offenses. Counts are risk signals only; nothing here blocks the candidate.
type Monitor struct {
	security domain.SecurityConfig
	offenses domain.Offenses
	active   string
	hidden   bool
	recRef   string
	persist  func(ctx context.Context) error
}

func NewMonitor(security domain.SecurityConfig, initial domain.Offenses, active, recordingRef string, persist func(ctx context.Context) error) *Monitor {
	return &Monitor{
		security: security,
		offenses: initial.Clone(),
		active:   active,
		recRef:   recordingRef,
		persist:  persist,
	}
}

// Focus marks the question the candidate is currently viewing.
func (m *Monitor) Focus(ctx context.Context, questionID string) {
	if m.active == questionID {
		return
	}
	m.active = questionID
	m.save(ctx)
}

func (m *Monitor) ActiveQuestion() string { return m.active }

// VisibilityChanged counts a tab change when the page becomes visible again after being hidden.
func (m *Monitor) VisibilityChanged(ctx context.Context, hidden bool) {
	wasHidden := m.hidden
	m.hidden = hidden
	if !m.security.TabChangeDetection || hidden || !wasHidden {
		return
	}
	m.offenses.TabChange.Add(m.active)
	m.save(ctx)
}

// Paste counts a paste into questionID, or into the active question when empty.
func (m *Monitor) Paste(ctx context.Context, questionID string) {
	if !m.security.CopyPasteDetection {
		return
	}
	if questionID == "" {
		questionID = m.active
	}
	m.offenses.CopyPaste.Add(questionID)
	m.save(ctx)
}

// RecordingStarted stores the reference the client reports for its session recording.
func (m *Monitor) RecordingStarted(ctx context.Context, ref string) {
	if !m.security.SessionRecording || ref == "" {
		return
	}
	m.recRef = ref
	m.save(ctx)
}

// RecordingFailed is logged; losing a recording never blocks the attempt.
func (m *Monitor) RecordingFailed(reason string) {
	if !m.security.SessionRecording {
		return
	}
	log.Warn().Str("reason", reason).Msg("session recording failed")
}

func (m *Monitor) RecordingRef() string { return m.recRef }

func (m *Monitor) Offenses() domain.Offenses {
	return m.offenses.Clone()
}

func (m *Monitor) save(ctx context.Context) {
	if m.persist == nil {
		return
	}
	if err := m.persist(ctx); err != nil {
		log.Warn().Err(err).Msg("persist integrity state")
	}
}
