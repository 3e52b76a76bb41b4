package domain

import "errors"

var (
	// ErrAssessmentNotFound is returned when no definition exists for an assessment id.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrInvalidDefinition marks a definition that cannot be used to start an attempt.
	ErrInvalidDefinition = errors.New("invalid assessment definition")
	// ErrAssessmentNotOpen is returned before the open window starts.
	ErrAssessmentNotOpen = errors.New("assessment not started yet")
	// ErrAssessmentClosed is returned after the open window ends.
	ErrAssessmentClosed = errors.New("assessment has ended")
	// ErrCandidateNotAllowed is returned when the candidate is not on the allowlist.
	ErrCandidateNotAllowed = errors.New("candidate is not allowed to take this assessment")

	// ErrAttemptNotFound indicates no persisted attempt state exists.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted is returned when mutating an attempt that was already submitted.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrAnswerKindMismatch is returned when an answer's shape does not fit the question.
	ErrAnswerKindMismatch = errors.New("answer does not match question kind")

	// ErrDuplicateSubmission is returned when the candidate already submitted the assessment.
	ErrDuplicateSubmission = errors.New("assessment already submitted")
	// ErrSubmissionNotFound indicates the submission id is unknown.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrQuestionNotFound indicates a question id that is not part of the definition.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNotReviewable is returned for questions outside the manual review queue.
	ErrNotReviewable = errors.New("question does not require manual review")
	// ErrMarkOutOfRange is returned when a manual mark is negative or above the question maximum.
	ErrMarkOutOfRange = errors.New("mark out of range")
	// ErrNotGraded is returned when review starts before the submission has a grade record.
	ErrNotGraded = errors.New("submission has not been graded")
	// ErrRunNotAllowed is returned when sample runs are disabled for the assessment.
	ErrRunNotAllowed = errors.New("running code is not allowed for this assessment")

	// ErrRewardAlreadyIssued is returned when a ledger entry exists for (candidate, problem).
	ErrRewardAlreadyIssued = errors.New("reward already issued")
	// ErrNoWallet indicates the candidate has no registered wallet.
	ErrNoWallet = errors.New("no wallet registered")
	// ErrProblemNotFound indicates no statistics exist for a problem id.
	ErrProblemNotFound = errors.New("problem not found")
)
