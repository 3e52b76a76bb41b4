package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"assessment-engine/internal/attempt"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SubmitRequest is the payload a candidate hands in.
type SubmitRequest struct {
	AssessmentID  string
	CandidateID   string
	CandidateName string
	Email         string
	Answers       domain.Answers
	Offenses      domain.Offenses
	// Timer is the client's remaining seconds; it is clamped to the server deadline.
	Timer        int
	RecordingRef string
}

// AssessmentService contains the attempt and submission use cases.
type AssessmentService struct {
	definitions DefinitionRepository
	submissions SubmissionRepository
	attempts    attempt.StateStore
	stats       ProblemStatsRepository
	pipeline    *grading.Pipeline
	rewards     *RewardService
	now         func() time.Time

	submitted []func(assessmentID, candidateID string)
}

func NewAssessmentService(
	definitions DefinitionRepository,
	submissions SubmissionRepository,
	attempts attempt.StateStore,
	stats ProblemStatsRepository,
	pipeline *grading.Pipeline,
	rewards *RewardService,
) *AssessmentService {
	return &AssessmentService{
		definitions: definitions,
		submissions: submissions,
		attempts:    attempts,
		stats:       stats,
		pipeline:    pipeline,
		rewards:     rewards,
		now:         time.Now,
	}
}

// WithClock swaps the clock; used by tests for deterministic deadlines.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// OnSubmitted registers fn to run once a submission is recorded. Register before serving.
func (s *AssessmentService) OnSubmitted(fn func(assessmentID, candidateID string)) {
	s.submitted = append(s.submitted, fn)
}

func (s *AssessmentService) definition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error) {
	def, err := s.definitions.GetDefinition(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentDefinition{}, err
	}
	if err := def.Validate(); err != nil {
		log.Error().Err(err).Str("assessmentID", assessmentID).Msg("rejecting assessment definition")
		return domain.AssessmentDefinition{}, err
	}
	return def, nil
}

// VerifyAccess checks the open window, a previous submission and the candidate allowlist, in that order.
func (s *AssessmentService) VerifyAccess(ctx context.Context, assessmentID, candidateID string) (domain.AssessmentDefinition, error) {
	def, err := s.definition(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentDefinition{}, err
	}
	if err := def.CheckWindow(s.now()); err != nil {
		return domain.AssessmentDefinition{}, err
	}
	_, err = s.submissions.FindByCandidate(ctx, assessmentID, candidateID)
	switch {
	case err == nil:
		return domain.AssessmentDefinition{}, domain.ErrDuplicateSubmission
	case !errors.Is(err, domain.ErrSubmissionNotFound):
		return domain.AssessmentDefinition{}, fmt.Errorf("find submission: %w", err)
	}
	if !def.Allows(candidateID) {
		return domain.AssessmentDefinition{}, domain.ErrCandidateNotAllowed
	}
	return def, nil
}

// OpenAttempt starts or resumes the candidate's attempt.
func (s *AssessmentService) OpenAttempt(ctx context.Context, assessmentID, candidateID string, hooks attempt.Hooks) (*attempt.Session, error) {
	def, err := s.VerifyAccess(ctx, assessmentID, candidateID)
	if err != nil {
		return nil, err
	}
	return attempt.Open(ctx, def, candidateID, s.attempts, s.now, hooks)
}

// SubmitAttempt hands in a live session and stops its countdown.
func (s *AssessmentService) SubmitAttempt(ctx context.Context, sess *attempt.Session, name, email string) (domain.Submission, error) {
	snap := sess.Snapshot()
	sess.MarkSubmitted()
	return s.Submit(ctx, SubmitRequest{
		AssessmentID:  snap.AssessmentID,
		CandidateID:   snap.CandidateID,
		CandidateName: name,
		Email:         email,
		Answers:       snap.Answers,
		Offenses:      snap.Offenses,
		Timer:         snap.RemainingSeconds,
		RecordingRef:  snap.RecordingRef,
	})
}

// Submit records the submission and grades it. Only the create step can fail the call;
// later failures are logged and the submission is left for Regrade.
func (s *AssessmentService) Submit(ctx context.Context, req SubmitRequest) (domain.Submission, error) {
	def, err := s.definition(ctx, req.AssessmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	if !def.Allows(req.CandidateID) {
		return domain.Submission{}, domain.ErrCandidateNotAllowed
	}

	now := s.now()
	sub := domain.Submission{
		ID:            uuid.NewString(),
		AssessmentID:  req.AssessmentID,
		CandidateID:   req.CandidateID,
		CandidateName: req.CandidateName,
		Email:         req.Email,
		Answers:       req.Answers,
		Offenses:      req.Offenses,
		Timer:         s.clampTimer(ctx, def, req),
		RecordingRef:  req.RecordingRef,
		Status:        domain.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sub.Answers == nil {
		sub.Answers = make(domain.Answers)
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	for _, fn := range s.submitted {
		fn(sub.AssessmentID, sub.CandidateID)
	}

	logger := log.With().Str("submissionID", sub.ID).Str("assessmentID", sub.AssessmentID).
		Str("candidateID", sub.CandidateID).Logger()

	gctx := context.WithoutCancel(ctx)
	graded, err := s.grade(gctx, def, sub, true)
	if err != nil {
		logger.Error().Err(err).Msg("store grade")
	} else {
		sub = graded
	}

	if err := s.attempts.Delete(gctx, req.AssessmentID, req.CandidateID); err != nil {
		logger.Warn().Err(err).Msg("clear attempt state")
	}
	return sub, nil
}

// DiscardAttempt drops in-flight state left behind for an attempt that was already submitted.
func (s *AssessmentService) DiscardAttempt(ctx context.Context, assessmentID, candidateID string) error {
	return s.attempts.Delete(ctx, assessmentID, candidateID)
}

// Regrade finishes grading a stored submission: questions without a settled code result are
// executed again, manual marks are kept and failed reward transfers are retried. A finished
// review keeps its verdict; only rewards are retried then.
func (s *AssessmentService) Regrade(ctx context.Context, submissionID string) (domain.Submission, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	def, err := s.definition(ctx, sub.AssessmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	return s.grade(ctx, def, sub, false)
}

func (s *AssessmentService) grade(ctx context.Context, def domain.AssessmentDefinition, sub domain.Submission, first bool) (domain.Submission, error) {
	var out grading.Outcome
	if sub.ReviewFinished() {
		out = grading.Outcome{Grade: *sub.Grade, CodeResults: sub.CodeResults}
	} else {
		out = s.pipeline.Grade(ctx, grading.Input{
			Definition:     def,
			Answers:        sub.Answers,
			Offenses:       sub.Offenses,
			Previous:       sub.Grade,
			Executed:       sub.CodeResults,
			ReviewFinished: sub.IsReviewed,
			RecordStats:    first,
		})
	}

	fresh, retried := s.considerRewards(ctx, sub, out.CodeResults)

	return s.submissions.Update(ctx, sub.ID, func(cur *domain.Submission) error {
		for i := range cur.Rewards {
			if r, ok := retried[cur.Rewards[i].QuestionID]; ok {
				cur.Rewards[i] = r
			}
		}
		cur.Rewards = append(cur.Rewards, fresh...)
		cur.UpdatedAt = s.now()
		if cur.ReviewFinished() {
			return nil
		}

		grade := out.Grade
		if !cur.IsReviewed {
			cur.IsReviewed = !grade.HasManualItems()
		}
		grade.Provisional = grade.HasManualItems() && !cur.IsReviewed
		cur.Grade = &grade
		cur.CodeResults = out.CodeResults
		cur.Failures = append(cur.Failures, out.Failures...)
		cur.Status = domain.StatusCompleted
		return nil
	})
}

// considerRewards returns outcomes for passed questions never considered before and
// replacements for outcomes that may be retried. Settled outcomes, a lost draw included,
// are left alone.
func (s *AssessmentService) considerRewards(ctx context.Context, sub domain.Submission, results []domain.CodeSubmissionResult) ([]domain.RewardOutcome, map[string]domain.RewardOutcome) {
	if s.rewards == nil {
		return nil, nil
	}
	prior := make(map[string]domain.RewardOutcome, len(sub.Rewards))
	for _, r := range sub.Rewards {
		prior[r.QuestionID] = r
	}
	var fresh []domain.RewardOutcome
	retried := make(map[string]domain.RewardOutcome)
	for _, res := range results {
		if !res.Passed {
			continue
		}
		prev, seen := prior[res.QuestionID]
		switch {
		case !seen:
			fresh = append(fresh, s.rewards.Consider(ctx, sub.CandidateID, res))
		case Retriable(prev):
			retried[res.QuestionID] = s.rewards.Retry(ctx, sub.CandidateID, res, prev)
		}
	}
	return fresh, retried
}

// clampTimer bounds the client's remaining time by the server-side deadline.
func (s *AssessmentService) clampTimer(ctx context.Context, def domain.AssessmentDefinition, req SubmitRequest) int {
	limit := def.TimeLimitSeconds()
	remaining := req.Timer
	if remaining > limit {
		remaining = limit
	}
	state, err := s.attempts.Load(ctx, req.AssessmentID, req.CandidateID)
	if err == nil && !state.Deadline.IsZero() {
		left := int(math.Ceil(state.Deadline.Sub(s.now()).Seconds()))
		if left < remaining {
			remaining = left
		}
	} else if err != nil && !errors.Is(err, domain.ErrAttemptNotFound) {
		log.Warn().Err(err).Str("assessmentID", req.AssessmentID).Str("candidateID", req.CandidateID).Msg("load attempt for timer check")
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RunCode executes a code answer against the sample cases only. Nothing is stored or rewarded.
func (s *AssessmentService) RunCode(ctx context.Context, assessmentID, questionID string, code domain.Code) (domain.CodeSubmissionResult, error) {
	def, err := s.definition(ctx, assessmentID)
	if err != nil {
		return domain.CodeSubmissionResult{}, err
	}
	if !def.Security.AllowRunBeforeSubmit {
		return domain.CodeSubmissionResult{}, domain.ErrRunNotAllowed
	}
	q, ok := def.Question(questionID)
	if !ok || q.Kind != domain.KindCode {
		return domain.CodeSubmissionResult{}, domain.ErrQuestionNotFound
	}
	return s.pipeline.RunSamples(ctx, q, code)
}

func (s *AssessmentService) Submission(ctx context.Context, submissionID string) (domain.Submission, error) {
	return s.submissions.Get(ctx, submissionID)
}

func (s *AssessmentService) ProblemStats(ctx context.Context, problemID string) (domain.ProblemStats, error) {
	return s.stats.GetStats(ctx, problemID)
}
