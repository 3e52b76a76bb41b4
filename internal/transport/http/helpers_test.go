package http

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"assessment-engine/internal/infra/memory"
)

type passExecutor struct{}

func (passExecutor) Execute(_ context.Context, req grading.ExecutionRequest) (grading.ExecutionResult, error) {
	res := grading.ExecutionResult{Passed: true}
	for _, tc := range req.TestCases {
		res.Cases = append(res.Cases, grading.CaseOutcome{CaseID: tc.ID, Output: tc.Expected, Passed: true})
	}
	return res, nil
}

// testClock lets a test move server time forward while handlers read it.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	*httptest.Server
	clock       *testClock
	assessments *app.AssessmentService
	submissions *memory.SubmissionRepository
	attempts    *memory.AttemptStore
}

func newTestServer(t *testing.T, defs ...domain.AssessmentDefinition) *testServer {
	t.Helper()
	clock := &testClock{now: time.Now()}
	definitions := memory.NewDefinitionRepository(memory.NewStaticDefinitionLoader(defs...), time.Minute)
	submissions := memory.NewSubmissionRepository()
	stats := memory.NewProblemStatsStore()
	attempts := memory.NewAttemptStore()
	pipeline := grading.NewPipeline(passExecutor{}, stats, grading.Config{ExecutorTimeout: time.Second})
	assessments := app.NewAssessmentService(definitions, submissions, attempts, stats, pipeline, nil).
		WithClock(clock.Now)
	reviews := app.NewReviewService(definitions, submissions)

	ws := NewWSHandler(assessments, memory.NewAttemptLock(), WSConfig{TickInterval: 20 * time.Millisecond})
	srv := httptest.NewServer(NewRouter(NewAPI(assessments, reviews), ws, RouterConfig{}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: clock, assessments: assessments, submissions: submissions, attempts: attempts}
}

func mcqDefinition() domain.AssessmentDefinition {
	return domain.AssessmentDefinition{
		ID:                "mcq-2",
		Title:             "Basics",
		TimeLimitMinutes:  10,
		PassingPercentage: 50,
		Sections: []domain.Section{{
			ID: "s1",
			Questions: []domain.Question{
				{ID: "q1", Kind: domain.KindSingle, Prompt: "1+1?", Options: []domain.Option{{ID: "a", Text: "2"}, {ID: "b", Text: "3"}}, Correct: []string{"a"}, Points: 1},
				{ID: "q2", Kind: domain.KindSingle, Prompt: "2+2?", Options: []domain.Option{{ID: "a", Text: "5"}, {ID: "b", Text: "4"}}, Correct: []string{"b"}, Points: 1},
			},
		}},
		Grading:    domain.GradingConfig{Mode: domain.GradingPerProblem},
		Security:   domain.SecurityConfig{TabChangeDetection: true, CopyPasteDetection: true},
		Candidates: []string{"c1", "c2"},
	}
}

func essayDefinition() domain.AssessmentDefinition {
	return domain.AssessmentDefinition{
		ID:                "essay-1",
		TimeLimitMinutes:  30,
		PassingPercentage: 60,
		Sections: []domain.Section{{
			ID: "s1",
			Questions: []domain.Question{
				{ID: "q1", Kind: domain.KindSingle, Options: []domain.Option{{ID: "a"}, {ID: "b"}}, Correct: []string{"a"}, Points: 2},
				{ID: "e1", Kind: domain.KindText, Prompt: "Explain A", Points: 4},
			},
		}},
		Grading: domain.GradingConfig{Mode: domain.GradingPerProblem},
	}
}
