package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/attempt"
	"assessment-engine/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AttemptLock guarantees a single live connection per attempt across instances.
type AttemptLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Refresh(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

type WSConfig struct {
	TickInterval time.Duration
	LockTTL      time.Duration
}

type WSHandler struct {
	service  *app.AssessmentService
	lock     AttemptLock
	upgrader websocket.Upgrader
	tick     time.Duration
	lockTTL  time.Duration

	mu   sync.Mutex
	live map[string]*liveConn
}

type liveConn struct {
	cancel context.CancelFunc
	done   chan struct{}
	// submitting is set while this connection hands in its own attempt.
	submitting atomic.Bool
}

func NewWSHandler(service *app.AssessmentService, lock AttemptLock, cfg WSConfig) *WSHandler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	h := &WSHandler{
		service: service,
		lock:    lock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick:    cfg.TickInterval,
		lockTTL: cfg.LockTTL,
		live:    make(map[string]*liveConn),
	}
	service.OnSubmitted(h.closeSubmitted)
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

type focusPayload struct {
	QuestionID string `json:"questionId"`
}

type visibilityPayload struct {
	Hidden bool `json:"hidden"`
}

type recordingPayload struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type remainingPayload struct {
	Remaining int `json:"remaining"`
}

type savedPayload struct {
	QuestionID string           `json:"questionId"`
	Progress   attempt.Progress `json:"progress"`
}

type submittedPayload struct {
	SubmissionID string                  `json:"submissionId"`
	Status       domain.SubmissionStatus `json:"status"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS runs one live attempt. A single loop owns the session: it applies inbound
// messages, ticks the countdown and refreshes the attempt lock.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assessmentID := q.Get("assessmentId")
	candidateID := q.Get("candidateId")
	name, email := q.Get("name"), q.Get("email")
	if assessmentID == "" || candidateID == "" {
		http.Error(w, "missing assessmentId or candidateId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("assessmentID", assessmentID).Str("candidateID", candidateID).Logger()
	key := domain.AttemptKey(assessmentID, candidateID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	lc := h.register(key, cancel)
	defer h.unregister(key, lc)

	send := make(chan outboundMessage, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				cancel()
				return
			}
		}
	}()
	defer func() {
		close(send)
		<-writerDone
	}()

	emit := func(typ string, payload any) {
		select {
		case send <- outboundMessage{Type: typ, Payload: payload}:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		emit("error", errorPayload{Message: err.Error()})
	}

	token, ok, err := h.lock.Acquire(ctx, key, h.lockTTL)
	if err != nil {
		logger.Error().Err(err).Msg("acquire attempt lock")
		fail(errors.New("attempt unavailable, try again"))
		return
	}
	if !ok {
		fail(errors.New("attempt is open in another session"))
		return
	}
	defer func() {
		if err := h.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Warn().Err(err).Msg("release attempt lock")
		}
	}()

	var finished bool
	submit := func(ctx context.Context, sess *attempt.Session) {
		if sess.Submitted() {
			return
		}
		lc.submitting.Store(true)
		sub, err := h.service.SubmitAttempt(context.WithoutCancel(ctx), sess, name, email)
		finished = true
		if err != nil {
			logger.Warn().Err(err).Msg("submit attempt")
			if errors.Is(err, domain.ErrDuplicateSubmission) {
				if err := h.service.DiscardAttempt(context.WithoutCancel(ctx), assessmentID, candidateID); err != nil {
					logger.Warn().Err(err).Msg("discard attempt state")
				}
			}
			fail(err)
			return
		}
		emit("submitted", submittedPayload{SubmissionID: sub.ID, Status: sub.Status})
	}

	sess, err := h.service.OpenAttempt(ctx, assessmentID, candidateID, attempt.Hooks{
		OnWarning: func(remaining int) {
			emit("warning", remainingPayload{Remaining: remaining})
		},
		OnExpire: func(ctx context.Context, s *attempt.Session) {
			logger.Info().Msg("time is up, submitting attempt")
			submit(ctx, s)
		},
	})
	if err != nil {
		fail(err)
		return
	}
	defer sess.Close()

	emit("state", newAttemptState(sess))

	inbound := make(chan inboundMessage)
	go func() {
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	refresh := time.NewTicker(h.lockTTL / 3)
	defer refresh.Stop()

	for !finished {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.Timer().Tick(ctx)
			if !finished {
				emit("tick", remainingPayload{Remaining: sess.Timer().Remaining()})
			}
		case <-refresh.C:
			held, err := h.lock.Refresh(ctx, key, token, h.lockTTL)
			if err != nil {
				logger.Warn().Err(err).Msg("refresh attempt lock")
				continue
			}
			if !held {
				fail(errors.New("attempt was opened in another session"))
				return
			}
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			h.handle(ctx, logger, sess, msg, emit, fail, submit)
		}
	}
}

func (h *WSHandler) handle(
	ctx context.Context,
	logger zerolog.Logger,
	sess *attempt.Session,
	msg inboundMessage,
	emit func(string, any),
	fail func(error),
	submit func(context.Context, *attempt.Session),
) {
	switch msg.Type {
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			fail(errors.New("invalid answer payload"))
			return
		}
		var ans domain.Answer
		if raw := bytes.TrimSpace(p.Answer); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			decoded, err := domain.DecodeAnswer(raw)
			if err != nil {
				fail(err)
				return
			}
			ans = decoded
		}
		if err := sess.Store().SetAnswer(ctx, p.QuestionID, ans); err != nil {
			fail(err)
			return
		}
		emit("saved", savedPayload{QuestionID: p.QuestionID, Progress: sess.Store().SolvedCount()})
	case "focus":
		var p focusPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			fail(errors.New("invalid focus payload"))
			return
		}
		sess.Monitor().Focus(ctx, p.QuestionID)
	case "visibility":
		var p visibilityPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			fail(errors.New("invalid visibility payload"))
			return
		}
		sess.Monitor().VisibilityChanged(ctx, p.Hidden)
	case "paste":
		var p focusPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				fail(errors.New("invalid paste payload"))
				return
			}
		}
		sess.Monitor().Paste(ctx, p.QuestionID)
	case "recording":
		var p recordingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			fail(errors.New("invalid recording payload"))
			return
		}
		if p.Error != "" {
			sess.Monitor().RecordingFailed(p.Error)
			return
		}
		sess.Monitor().RecordingStarted(ctx, p.URL)
	case "submit":
		logger.Info().Msg("candidate submitted attempt")
		submit(ctx, sess)
	default:
		fail(errors.New("unsupported message type"))
	}
}

// register installs the connection as the live one for key, closing any previous
// connection of the same attempt on this instance first.
func (h *WSHandler) register(key string, cancel context.CancelFunc) *liveConn {
	lc := &liveConn{cancel: cancel, done: make(chan struct{})}
	for {
		h.mu.Lock()
		old, ok := h.live[key]
		if !ok {
			h.live[key] = lc
			h.mu.Unlock()
			return lc
		}
		h.mu.Unlock()
		old.cancel()
		<-old.done
	}
}

func (h *WSHandler) unregister(key string, lc *liveConn) {
	h.mu.Lock()
	if h.live[key] == lc {
		delete(h.live, key)
	}
	h.mu.Unlock()
	close(lc.done)
}

// closeSubmitted ends a live connection whose attempt was handed in by another request.
func (h *WSHandler) closeSubmitted(assessmentID, candidateID string) {
	h.mu.Lock()
	lc, ok := h.live[domain.AttemptKey(assessmentID, candidateID)]
	h.mu.Unlock()
	if !ok || lc.submitting.Load() {
		return
	}
	lc.cancel()
	select {
	case <-lc.done:
	case <-time.After(2 * time.Second):
	}
}

// Shutdown cancels every live attempt on this instance; their state stays resumable.
func (h *WSHandler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, lc := range h.live {
		lc.cancel()
	}
}
