package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"assessment-engine/internal/infra/memory"
)

type fakeExecutor struct {
	failCases map[string]bool
}

func (f fakeExecutor) Execute(_ context.Context, req grading.ExecutionRequest) (grading.ExecutionResult, error) {
	res := grading.ExecutionResult{Passed: true}
	for _, tc := range req.TestCases {
		ok := !f.failCases[tc.ID]
		if !ok {
			res.Passed = false
		}
		res.Cases = append(res.Cases, grading.CaseOutcome{CaseID: tc.ID, Output: tc.Expected, Passed: ok})
	}
	return res, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	transfers int
	fail      bool
	balance   float64
}

func (l *fakeLedger) Transfer(_ context.Context, to string, amount float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return "", errors.New("ledger unreachable")
	}
	l.transfers++
	l.balance += amount
	return fmt.Sprintf("0xtx%d", l.transfers), nil
}

func (l *fakeLedger) BalanceOf(_ context.Context, _ string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfers
}

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

type testEnv struct {
	service     *app.AssessmentService
	review      *app.ReviewService
	rewards     *app.RewardService
	rewardStore *memory.RewardStore
	submissions *memory.SubmissionRepository
	attempts    *memory.AttemptStore
	stats       *memory.ProblemStatsStore
	ledger      *fakeLedger
}

func newTestEnv(exec grading.Executor, rnd app.Rand, defs ...domain.AssessmentDefinition) *testEnv {
	if len(defs) == 0 {
		defs = []domain.AssessmentDefinition{domain.SampleDefinition()}
	}
	definitions := memory.NewDefinitionRepository(memory.NewStaticDefinitionLoader(defs...), 5*time.Minute)
	env := &testEnv{
		rewardStore: memory.NewRewardStore(),
		submissions: memory.NewSubmissionRepository(),
		attempts:    memory.NewAttemptStore(),
		stats:       memory.NewProblemStatsStore(),
		ledger:      &fakeLedger{},
	}
	env.rewards = app.NewRewardService(env.rewardStore, env.rewardStore, env.ledger, app.DefaultRewardConfig(), rnd)
	pipeline := grading.NewPipeline(exec, env.stats, grading.Config{ExecutorTimeout: time.Second})
	env.service = app.NewAssessmentService(definitions, env.submissions, env.attempts, env.stats, pipeline, env.rewards)
	env.review = app.NewReviewService(definitions, env.submissions)
	return env
}

func twoMCQDefinition() domain.AssessmentDefinition {
	return domain.AssessmentDefinition{
		ID:                "mcq-2",
		TimeLimitMinutes:  60,
		PassingPercentage: 50,
		Sections: []domain.Section{{
			ID: "s1",
			Questions: []domain.Question{
				{ID: "q1", Kind: domain.KindSingle, Options: []domain.Option{{ID: "a"}, {ID: "b"}}, Correct: []string{"a"}, Points: 1},
				{ID: "q2", Kind: domain.KindSingle, Options: []domain.Option{{ID: "a"}, {ID: "b"}}, Correct: []string{"b"}, Points: 1},
			},
		}},
		Grading: domain.GradingConfig{Mode: domain.GradingPerProblem},
	}
}

func codeOnlyDefinition(difficulty domain.Difficulty) domain.AssessmentDefinition {
	return domain.AssessmentDefinition{
		ID:                "code-1",
		TimeLimitMinutes:  60,
		PassingPercentage: 50,
		Sections: []domain.Section{{
			ID: "s1",
			Questions: []domain.Question{{
				ID: "c1", Kind: domain.KindCode, Points: 5,
				Problem: &domain.CodeProblem{
					ID:         "p1",
					Difficulty: difficulty,
					TestCases:  []domain.TestCase{{ID: "t1", Sample: true}, {ID: "t2"}, {ID: "t3"}},
				},
			}},
		}},
		Grading: domain.GradingConfig{Mode: domain.GradingPerProblem},
	}
}

// switchExecutor passes every case until err is set.
type switchExecutor struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *switchExecutor) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *switchExecutor) Execute(ctx context.Context, req grading.ExecutionRequest) (grading.ExecutionResult, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return grading.ExecutionResult{}, err
	}
	return fakeExecutor{}.Execute(ctx, req)
}

func (e *switchExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// sequenceRand returns vals in order and then repeats the last one.
type sequenceRand struct {
	mu   sync.Mutex
	vals []float64
}

func (r *sequenceRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[0]
	if len(r.vals) > 1 {
		r.vals = r.vals[1:]
	}
	return v
}

func (l *fakeLedger) setFail(fail bool) {
	l.mu.Lock()
	l.fail = fail
	l.mu.Unlock()
}

func codeAndEssayDefinition() domain.AssessmentDefinition {
	def := codeOnlyDefinition(domain.DifficultyEasy)
	def.ID = "mixed-1"
	def.PassingPercentage = 70
	def.Sections[0].Questions = append(def.Sections[0].Questions,
		domain.Question{ID: "e1", Kind: domain.KindText, Prompt: "Explain the solution", Points: 5})
	return def
}
