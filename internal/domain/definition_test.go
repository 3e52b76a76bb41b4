package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSampleDefinitionIsValid(t *testing.T) {
	if err := SampleDefinition().Validate(); err != nil {
		t.Fatalf("expected sample to validate, got %v", err)
	}
}

func TestValidateRejectsBrokenDefinitions(t *testing.T) {
	def := SampleDefinition()
	def.TimeLimitMinutes = 0
	if err := def.Validate(); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected invalid definition for zero time limit, got %v", err)
	}

	def = SampleDefinition()
	def.Sections[0].Questions[0].Correct = []string{"zz"}
	if err := def.Validate(); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected invalid definition for unknown correct option, got %v", err)
	}

	def = SampleDefinition()
	def.Sections[1].Questions[0].Problem = nil
	if err := def.Validate(); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected invalid definition for code question without problem, got %v", err)
	}

	def = SampleDefinition()
	def.Sections[1].Questions[0].ID = "q1"
	if err := def.Validate(); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected invalid definition for duplicate id, got %v", err)
	}
}

func TestMaxMarksFollowsGradingMode(t *testing.T) {
	def := SampleDefinition()
	code, _ := def.Question("q4")

	if got := def.MaxMarks(code); got != 4 {
		t.Fatalf("per-problem max marks: expected 4, got %v", got)
	}
	if got := def.ObtainableScore(); got != 10 {
		t.Fatalf("per-problem obtainable: expected 10, got %v", got)
	}

	def.Grading.Mode = GradingTestcase
	code.Problem.TestCases[1].Difficulty = DifficultyHard
	if got := def.MaxMarks(code); got != 4 {
		t.Fatalf("testcase max marks: expected easy(1)+hard(3)=4, got %v", got)
	}
	code.Problem.TestCases[1].Difficulty = ""
	if got := def.MaxMarks(code); got != 2 {
		t.Fatalf("testcase max marks falls back to problem difficulty: expected 2, got %v", got)
	}
}

func TestCheckWindowAndAllowlist(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	def := SampleDefinition()
	def.Window = Window{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}
	if err := def.CheckWindow(now); err != ErrAssessmentNotOpen {
		t.Fatalf("expected not open, got %v", err)
	}
	if err := def.CheckWindow(now.Add(3 * time.Hour)); err != ErrAssessmentClosed {
		t.Fatalf("expected closed, got %v", err)
	}
	if err := def.CheckWindow(now.Add(90 * time.Minute)); err != nil {
		t.Fatalf("expected open, got %v", err)
	}

	if !def.Allows("anyone") {
		t.Fatalf("empty allowlist should admit everyone")
	}
	def.Candidates = []string{"alice@example.com"}
	if def.Allows("bob@example.com") {
		t.Fatalf("expected bob to be rejected")
	}
}
