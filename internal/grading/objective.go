package grading

import "assessment-engine/internal/domain"

// Strategy scores a single non-code answer.
type Strategy interface {
	Grade(q domain.Question, maxMarks float64, ans domain.Answer) domain.GradeItem
}

var strategies = map[domain.QuestionKind]Strategy{
	domain.KindSingle: singleChoice{},
	domain.KindMulti:  multiChoice{},
	domain.KindText:   freeText{},
}

// GradeObjective routes the answer to the strategy for its question kind.
func GradeObjective(q domain.Question, maxMarks float64, ans domain.Answer) domain.GradeItem {
	s, ok := strategies[q.Kind]
	if !ok {
		return domain.GradeItem{QuestionID: q.ID, Kind: q.Kind, MaxMarks: maxMarks, NeedsManualReview: true}
	}
	return s.Grade(q, maxMarks, ans)
}

type singleChoice struct{}

func (singleChoice) Grade(q domain.Question, maxMarks float64, ans domain.Answer) domain.GradeItem {
	item := domain.GradeItem{QuestionID: q.ID, Kind: q.Kind, MaxMarks: maxMarks}
	sel, ok := ans.(domain.Selection)
	if !ok || len(sel.OptionIDs) != 1 || len(q.Correct) != 1 {
		return item
	}
	if sel.OptionIDs[0] == q.Correct[0] {
		item.ObtainedMarks = maxMarks
	}
	return item
}

// multiChoice awards full marks only for the exact correct set.
type multiChoice struct{}

func (multiChoice) Grade(q domain.Question, maxMarks float64, ans domain.Answer) domain.GradeItem {
	item := domain.GradeItem{QuestionID: q.ID, Kind: q.Kind, MaxMarks: maxMarks}
	sel, ok := ans.(domain.Selection)
	if !ok {
		return item
	}
	if setEqual(toSet(sel.OptionIDs), toSet(q.Correct)) {
		item.ObtainedMarks = maxMarks
	}
	return item
}

type freeText struct{}

func (freeText) Grade(q domain.Question, maxMarks float64, _ domain.Answer) domain.GradeItem {
	return domain.GradeItem{QuestionID: q.ID, Kind: q.Kind, MaxMarks: maxMarks, NeedsManualReview: true}
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
