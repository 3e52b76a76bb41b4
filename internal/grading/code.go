package grading

import (
	"context"
	"fmt"
	"time"

	"assessment-engine/internal/domain"
)

// CodeGrader executes code answers with a bounded timeout.
type CodeGrader struct {
	executor Executor
	timeout  time.Duration
}

func NewCodeGrader(executor Executor, timeout time.Duration) *CodeGrader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CodeGrader{executor: executor, timeout: timeout}
}

// Run executes the answer against cases. The result is passed only if at least one case ran and all passed.
func (g *CodeGrader) Run(ctx context.Context, q domain.Question, cases []domain.TestCase, ans domain.Code) (domain.CodeSubmissionResult, error) {
	res := domain.CodeSubmissionResult{
		QuestionID: q.ID,
		Language:   ans.Language,
		Code:       ans.Source,
	}
	if q.Problem != nil {
		res.ProblemID = q.Problem.ID
		res.Difficulty = q.Problem.Difficulty
		if !languageAllowed(q.Problem.Languages, ans.Language) {
			err := fmt.Errorf("language %q not supported", ans.Language)
			res.Error = err.Error()
			return res, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.executor.Execute(ctx, ExecutionRequest{
		Language:  ans.Language,
		Code:      ans.Source,
		TestCases: cases,
	})
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("execute %s: %w", q.ID, err)
	}

	byID := make(map[string]CaseOutcome, len(out.Cases))
	for _, c := range out.Cases {
		byID[c.CaseID] = c
	}
	allPassed := len(cases) > 0
	for _, tc := range cases {
		o, ran := byID[tc.ID]
		cr := domain.CaseResult{
			CaseID:   tc.ID,
			Input:    tc.Input,
			Expected: tc.Expected,
			Sample:   tc.Sample,
		}
		if ran {
			cr.Output = o.Output
			cr.Passed = o.Passed
			cr.TimeMs = o.TimeMs
			cr.MemoryKB = o.MemoryKB
		}
		if !cr.Passed {
			allPassed = false
		}
		res.Cases = append(res.Cases, cr)
	}
	res.Passed = allPassed
	return res, nil
}

func languageAllowed(allowed []string, lang string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, l := range allowed {
		if l == lang {
			return true
		}
	}
	return false
}
