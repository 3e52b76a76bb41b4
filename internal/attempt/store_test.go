package attempt

import (
	"context"
	"errors"
	"testing"

	"assessment-engine/internal/domain"
)

func TestClearAndReanswerRestoresSolvedCount(t *testing.T) {
	ctx := context.Background()
	persists := 0
	store := NewStore(domain.SampleDefinition(), nil, func(context.Context) error {
		persists++
		return nil
	})

	if err := store.SetAnswer(ctx, "q2", domain.Selection{OptionIDs: []string{"a", "c"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetAnswer(ctx, "q4", domain.Code{Language: "go", Source: "package main"}); err != nil {
		t.Fatalf("set code: %v", err)
	}
	before := store.SolvedCount()
	if before.Objective != 1 || before.Code != 1 {
		t.Fatalf("unexpected progress %+v", before)
	}

	if err := store.SetAnswer(ctx, "q2", domain.Selection{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := store.SolvedCount(); got.Objective != 0 {
		t.Fatalf("expected cleared answer to drop from count, got %+v", got)
	}

	if err := store.SetAnswer(ctx, "q2", domain.Selection{OptionIDs: []string{"a"}}); err != nil {
		t.Fatalf("re-answer: %v", err)
	}
	if got := store.SolvedCount(); got != before {
		t.Fatalf("expected %+v after re-answer, got %+v", before, got)
	}
	if persists != 4 {
		t.Fatalf("expected every mutation persisted, got %d", persists)
	}
}

func TestBlankTextRemovesAnswer(t *testing.T) {
	ctx := context.Background()
	store := NewStore(domain.SampleDefinition(), nil, nil)
	_ = store.SetAnswer(ctx, "q3", domain.FreeText{Text: "something"})
	_ = store.SetAnswer(ctx, "q3", domain.FreeText{Text: "   "})
	if _, ok := store.Answer("q3"); ok {
		t.Fatalf("expected blank text to remove answer")
	}
}

func TestSetAnswerRejectsMismatchAndUnknown(t *testing.T) {
	ctx := context.Background()
	store := NewStore(domain.SampleDefinition(), nil, nil)
	if err := store.SetAnswer(ctx, "q1", domain.FreeText{Text: "b"}); !errors.Is(err, domain.ErrAnswerKindMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := store.SetAnswer(ctx, "nope", domain.FreeText{Text: "b"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestSetAnswerReturnsPersistError(t *testing.T) {
	store := NewStore(domain.SampleDefinition(), nil, func(context.Context) error { return errors.New("down") })
	if err := store.SetAnswer(context.Background(), "q1", domain.Selection{OptionIDs: []string{"b"}}); err == nil {
		t.Fatalf("expected persist error to surface")
	}
	if _, ok := store.Answer("q1"); !ok {
		t.Fatalf("expected answer applied locally despite persist failure")
	}
}

func TestAnswersReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(domain.SampleDefinition(), nil, nil)
	_ = store.SetAnswer(ctx, "q1", domain.Selection{OptionIDs: []string{"b"}})
	snap := store.Answers()
	delete(snap, "q1")
	if _, ok := store.Answer("q1"); !ok {
		t.Fatalf("mutating the copy changed the store")
	}
}
