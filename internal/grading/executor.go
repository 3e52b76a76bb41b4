package grading

import (
	"context"

	"assessment-engine/internal/domain"
)

// Executor runs candidate code against test cases in an external sandbox.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

type ExecutionRequest struct {
	Language  string
	Code      string
	TestCases []domain.TestCase
}

type CaseOutcome struct {
	CaseID   string
	Output   string
	Passed   bool
	TimeMs   int64
	MemoryKB int64
}

type ExecutionResult struct {
	Passed bool
	Cases  []CaseOutcome
}

// StatsRecorder counts per-problem submissions with an atomic storage increment.
type StatsRecorder interface {
	RecordSubmission(ctx context.Context, problemID string, passed bool) error
}
