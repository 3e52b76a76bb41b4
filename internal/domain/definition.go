package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// QuestionKind tags both a question and the answer shape it accepts.
type QuestionKind string

const (
	KindSingle QuestionKind = "single"
	KindMulti  QuestionKind = "multi"
	KindText   QuestionKind = "text"
	KindCode   QuestionKind = "code"
)

// Objective reports whether the kind is auto-graded by option matching.
func (k QuestionKind) Objective() bool {
	return k == KindSingle || k == KindMulti
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type GradingMode string

const (
	// GradingTestcase sums per-case points indexed by test case difficulty.
	GradingTestcase GradingMode = "testcase"
	// GradingPerProblem uses the question's own point value.
	GradingPerProblem GradingMode = "per-problem"
)

type Option struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

type TestCase struct {
	ID         string     `json:"id" validate:"required"`
	Input      string     `json:"input"`
	Expected   string     `json:"expected"`
	Sample     bool       `json:"sample"`
	Difficulty Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// CodeProblem is the executable part of a code question.
type CodeProblem struct {
	ID         string     `json:"id" validate:"required"`
	Difficulty Difficulty `json:"difficulty" validate:"required,oneof=easy medium hard"`
	TestCases  []TestCase `json:"testCases" validate:"required,min=1,dive"`
	Languages  []string   `json:"languages,omitempty"`
}

// SampleCases returns the cases a candidate may run before submitting.
func (p CodeProblem) SampleCases() []TestCase {
	out := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if tc.Sample {
			out = append(out, tc)
		}
	}
	return out
}

type Question struct {
	ID      string       `json:"id" validate:"required"`
	Kind    QuestionKind `json:"kind" validate:"required,oneof=single multi text code"`
	Prompt  string       `json:"prompt"`
	Options []Option     `json:"options,omitempty" validate:"dive"`
	Correct []string     `json:"correct,omitempty"`
	Points  float64      `json:"points" validate:"gte=0"`
	Problem *CodeProblem `json:"problem,omitempty"`
}

type Section struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions" validate:"dive"`
}

type TestcasePoints struct {
	Easy   float64 `json:"easy" validate:"gte=0"`
	Medium float64 `json:"medium" validate:"gte=0"`
	Hard   float64 `json:"hard" validate:"gte=0"`
}

func (p TestcasePoints) For(d Difficulty) float64 {
	switch d {
	case DifficultyEasy:
		return p.Easy
	case DifficultyMedium:
		return p.Medium
	default:
		return p.Hard
	}
}

type GradingConfig struct {
	Mode           GradingMode    `json:"mode" validate:"required,oneof=testcase per-problem"`
	TestcasePoints TestcasePoints `json:"testcasePoints"`
}

// SecurityConfig selects the integrity checks active for an attempt.
type SecurityConfig struct {
	TabChangeDetection   bool `json:"tabChangeDetection"`
	CopyPasteDetection   bool `json:"copyPasteDetection"`
	SessionRecording     bool `json:"sessionRecording"`
	AllowAutoComplete    bool `json:"allowAutoComplete"`
	AllowRunBeforeSubmit bool `json:"allowRunBeforeSubmit"`
}

// Window is the open-access range; zero bounds are unbounded.
type Window struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// AssessmentDefinition is read-only to the engine.
type AssessmentDefinition struct {
	ID                string         `json:"id" validate:"required"`
	Title             string         `json:"title"`
	TimeLimitMinutes  int            `json:"timeLimitMinutes" validate:"gt=0"`
	PassingPercentage float64        `json:"passingPercentage" validate:"gte=0,lte=100"`
	Sections          []Section      `json:"sections" validate:"required,min=1,dive"`
	Grading           GradingConfig  `json:"grading"`
	Security          SecurityConfig `json:"security"`
	Window            Window         `json:"window"`
	Candidates        []string       `json:"candidates,omitempty"`
}

var validate = validator.New()

// Validate rejects definitions that cannot start an attempt.
func (d AssessmentDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, err.Error())
	}
	seen := make(map[string]struct{})
	for _, q := range d.Questions() {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidDefinition, q.ID)
		}
		seen[q.ID] = struct{}{}
		switch q.Kind {
		case KindSingle:
			if len(q.Correct) != 1 {
				return fmt.Errorf("%w: question %q needs exactly one correct option", ErrInvalidDefinition, q.ID)
			}
		case KindMulti:
			if len(q.Correct) == 0 {
				return fmt.Errorf("%w: question %q needs at least one correct option", ErrInvalidDefinition, q.ID)
			}
		case KindCode:
			if q.Problem == nil {
				return fmt.Errorf("%w: code question %q has no problem", ErrInvalidDefinition, q.ID)
			}
			if err := validate.Struct(q.Problem); err != nil {
				return fmt.Errorf("%w: question %q: %s", ErrInvalidDefinition, q.ID, err.Error())
			}
		}
		if q.Kind.Objective() {
			opts := make(map[string]struct{}, len(q.Options))
			for _, o := range q.Options {
				opts[o.ID] = struct{}{}
			}
			for _, c := range q.Correct {
				if _, ok := opts[c]; !ok {
					return fmt.Errorf("%w: question %q correct option %q is not an option", ErrInvalidDefinition, q.ID, c)
				}
			}
		}
	}
	if !d.Window.Start.IsZero() && !d.Window.End.IsZero() && d.Window.End.Before(d.Window.Start) {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidDefinition)
	}
	return nil
}

// Questions flattens sections in definition order.
func (d AssessmentDefinition) Questions() []Question {
	var out []Question
	for _, s := range d.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

func (d AssessmentDefinition) Question(id string) (Question, bool) {
	for _, s := range d.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

func (d AssessmentDefinition) TimeLimit() time.Duration {
	return time.Duration(d.TimeLimitMinutes) * time.Minute
}

func (d AssessmentDefinition) TimeLimitSeconds() int {
	return d.TimeLimitMinutes * 60
}

// MaxMarks is the value of a question under the definition's grading mode.
func (d AssessmentDefinition) MaxMarks(q Question) float64 {
	if q.Kind != KindCode || q.Problem == nil || d.Grading.Mode != GradingTestcase {
		return q.Points
	}
	total := 0.0
	for _, tc := range q.Problem.TestCases {
		diff := tc.Difficulty
		if diff == "" {
			diff = q.Problem.Difficulty
		}
		total += d.Grading.TestcasePoints.For(diff)
	}
	return total
}

func (d AssessmentDefinition) ObtainableScore() float64 {
	total := 0.0
	for _, q := range d.Questions() {
		total += d.MaxMarks(q)
	}
	return total
}

// CheckWindow reports whether the assessment is open at now.
func (d AssessmentDefinition) CheckWindow(now time.Time) error {
	if !d.Window.Start.IsZero() && now.Before(d.Window.Start) {
		return ErrAssessmentNotOpen
	}
	if !d.Window.End.IsZero() && now.After(d.Window.End) {
		return ErrAssessmentClosed
	}
	return nil
}

// Allows reports whether the candidate may take the assessment.
func (d AssessmentDefinition) Allows(candidateID string) bool {
	if len(d.Candidates) == 0 {
		return true
	}
	for _, c := range d.Candidates {
		if c == candidateID {
			return true
		}
	}
	return false
}
