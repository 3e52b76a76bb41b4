package attempt

import (
	"context"
	"fmt"

	"assessment-engine/internal/domain"
)

// Progress counts answered questions by family.
type Progress struct {
	Objective int `json:"objective"`
	Code      int `json:"code"`
}

// Store holds a candidate's answers. Reads are local; every mutation is persisted.
type Store struct {
	def     domain.AssessmentDefinition
	answers domain.Answers
	persist func(ctx context.Context) error
}

func NewStore(def domain.AssessmentDefinition, initial domain.Answers, persist func(ctx context.Context) error) *Store {
	answers := initial.Clone()
	if answers == nil {
		answers = make(domain.Answers)
	}
	return &Store{def: def, answers: answers, persist: persist}
}

// SetAnswer upserts an answer; an empty answer clears the entry.
func (s *Store) SetAnswer(ctx context.Context, questionID string, ans domain.Answer) error {
	q, ok := s.def.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	if ans == nil || ans.Empty() {
		delete(s.answers, questionID)
	} else {
		if !domain.Accepts(q.Kind, ans) {
			return fmt.Errorf("%w: %s is %s, got %s", domain.ErrAnswerKindMismatch, questionID, q.Kind, ans.Kind())
		}
		if sel, ok := ans.(domain.Selection); ok {
			ans = domain.Selection{OptionIDs: append([]string(nil), sel.OptionIDs...)}
		}
		s.answers[questionID] = ans
	}
	if s.persist == nil {
		return nil
	}
	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("persist answer %s: %w", questionID, err)
	}
	return nil
}

func (s *Store) Answer(questionID string) (domain.Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// Answers returns a copy safe to hand to other goroutines.
func (s *Store) Answers() domain.Answers {
	return s.answers.Clone()
}

func (s *Store) SolvedCount() Progress {
	var p Progress
	for id := range s.answers {
		q, ok := s.def.Question(id)
		if !ok {
			continue
		}
		switch q.Kind {
		case domain.KindCode:
			p.Code++
		default:
			p.Objective++
		}
	}
	return p
}
