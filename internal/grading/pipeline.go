package grading

import (
	"context"
	"sync"
	"time"

	"assessment-engine/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ExecutorTimeout       time.Duration
	Concurrency           int
	LightCopyingThreshold int
}

type Input struct {
	Definition domain.AssessmentDefinition
	Answers    domain.Answers
	Offenses   domain.Offenses
	// Previous carries manual marks forward when a submission is graded again.
	Previous *domain.GradeRecord
	// Executed holds code results from an earlier run. A result without an error is final
	// and is reused as is; only errored or missing questions go to the executor again.
	Executed []domain.CodeSubmissionResult
	// ReviewFinished keeps the verdict final when a reviewer already closed the review.
	ReviewFinished bool
	// RecordStats is false for regrades so problem counters are not inflated.
	RecordStats bool
}

type Outcome struct {
	Grade       domain.GradeRecord
	CodeResults []domain.CodeSubmissionResult
	Failures    []domain.GradingFailure
}

// Pipeline grades a whole submission. A failing question scores 0 and never aborts the rest.
type Pipeline struct {
	code  *CodeGrader
	stats StatsRecorder
	cfg   Config
	now   func() time.Time
}

func NewPipeline(executor Executor, stats StatsRecorder, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LightCopyingThreshold <= 0 {
		cfg.LightCopyingThreshold = DefaultLightCopyingThreshold
	}
	return &Pipeline{
		code:  NewCodeGrader(executor, cfg.ExecutorTimeout),
		stats: stats,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (p *Pipeline) Grade(ctx context.Context, in Input) Outcome {
	def := in.Definition
	questions := def.Questions()
	items := make([]domain.GradeItem, len(questions))
	codeResults := make([]*domain.CodeSubmissionResult, len(questions))

	var (
		mu       sync.Mutex
		failures []domain.GradingFailure
	)
	fail := func(questionID, reason string) {
		mu.Lock()
		failures = append(failures, domain.GradingFailure{QuestionID: questionID, Reason: reason, At: p.now()})
		mu.Unlock()
	}

	settled := make(map[string]domain.CodeSubmissionResult, len(in.Executed))
	for _, r := range in.Executed {
		if r.Error == "" {
			settled[r.QuestionID] = r
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	for i, q := range questions {
		maxMarks := def.MaxMarks(q)
		ans, answered := in.Answers[q.ID]
		if answered && !domain.Accepts(q.Kind, ans) {
			log.Warn().Str("assessmentID", def.ID).Str("questionID", q.ID).
				Str("kind", string(ans.Kind())).Msg("answer kind does not match question, scoring 0")
			answered = false
		}

		if q.Kind != domain.KindCode {
			if !answered {
				ans = nil
			}
			items[i] = GradeObjective(q, maxMarks, ans)
			continue
		}

		items[i] = domain.GradeItem{QuestionID: q.ID, Kind: q.Kind, MaxMarks: maxMarks}
		if !answered || q.Problem == nil {
			continue
		}
		if prev, ok := settled[q.ID]; ok {
			codeResults[i] = &prev
			if prev.Passed {
				items[i].ObtainedMarks = maxMarks
			}
			continue
		}
		i, q, code := i, q, ans.(domain.Code)
		g.Go(func() error {
			res, err := p.code.Run(ctx, q, q.Problem.TestCases, code)
			codeResults[i] = &res
			if err != nil {
				log.Warn().Err(err).Str("assessmentID", def.ID).Str("questionID", q.ID).Msg("code grading failed")
				fail(q.ID, err.Error())
				return nil
			}
			if res.Passed {
				items[i].ObtainedMarks = maxMarks
			}
			if in.RecordStats && p.stats != nil {
				if err := p.stats.RecordSubmission(ctx, q.Problem.ID, res.Passed); err != nil {
					log.Warn().Err(err).Str("problemID", q.Problem.ID).Msg("record problem stats")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if in.Previous != nil {
		for i := range items {
			prev, ok := in.Previous.Item(items[i].QuestionID)
			if ok && items[i].NeedsManualReview && prev.Reviewed {
				items[i].ObtainedMarks = clamp(prev.ObtainedMarks, 0, items[i].MaxMarks)
				items[i].Reviewed = true
			}
		}
	}

	out := Outcome{
		Grade: domain.GradeRecord{
			Items:          items,
			CheatingStatus: CheatingStatus(in.Offenses, p.cfg.LightCopyingThreshold),
		},
		Failures: failures,
	}
	Recompute(&out.Grade, def.PassingPercentage, in.ReviewFinished)
	for _, r := range codeResults {
		if r != nil {
			out.CodeResults = append(out.CodeResults, *r)
		}
	}
	return out
}

// RunSamples executes only the sample cases of a code question.
func (p *Pipeline) RunSamples(ctx context.Context, q domain.Question, ans domain.Code) (domain.CodeSubmissionResult, error) {
	if q.Problem == nil {
		return domain.CodeSubmissionResult{}, domain.ErrQuestionNotFound
	}
	return p.code.Run(ctx, q, q.Problem.SampleCases(), ans)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
