package http

import (
	"assessment-engine/internal/attempt"
	"assessment-engine/internal/domain"
)

// questionView is what a candidate sees of a question: no answer key, sample cases only.
type questionView struct {
	ID        string              `json:"id"`
	Kind      domain.QuestionKind `json:"kind"`
	Prompt    string              `json:"prompt"`
	Options   []domain.Option     `json:"options,omitempty"`
	Points    float64             `json:"points"`
	Languages []string            `json:"languages,omitempty"`
	Samples   []domain.TestCase   `json:"samples,omitempty"`
}

type sectionView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []questionView `json:"questions"`
}

type assessmentView struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	TimeLimitMinutes int                   `json:"timeLimitMinutes"`
	Sections         []sectionView         `json:"sections"`
	Security         domain.SecurityConfig `json:"security"`
}

func newAssessmentView(def domain.AssessmentDefinition) assessmentView {
	out := assessmentView{
		ID:               def.ID,
		Title:            def.Title,
		TimeLimitMinutes: def.TimeLimitMinutes,
		Security:         def.Security,
		Sections:         make([]sectionView, 0, len(def.Sections)),
	}
	for _, s := range def.Sections {
		sv := sectionView{ID: s.ID, Title: s.Title, Questions: make([]questionView, 0, len(s.Questions))}
		for _, q := range s.Questions {
			qv := questionView{
				ID:      q.ID,
				Kind:    q.Kind,
				Prompt:  q.Prompt,
				Options: q.Options,
				Points:  def.MaxMarks(q),
			}
			if q.Problem != nil {
				qv.Languages = q.Problem.Languages
				qv.Samples = q.Problem.SampleCases()
			}
			sv.Questions = append(sv.Questions, qv)
		}
		out.Sections = append(out.Sections, sv)
	}
	return out
}

// attemptState is the resume payload sent when a live attempt opens.
type attemptState struct {
	Assessment     assessmentView   `json:"assessment"`
	Remaining      int              `json:"remaining"`
	Answers        domain.Answers   `json:"answers"`
	Offenses       domain.Offenses  `json:"offenses"`
	ActiveQuestion string           `json:"activeQuestion,omitempty"`
	Progress       attempt.Progress `json:"progress"`
}

func newAttemptState(sess *attempt.Session) attemptState {
	snap := sess.Snapshot()
	return attemptState{
		Assessment:     newAssessmentView(sess.Definition()),
		Remaining:      sess.Timer().ServerRemaining(),
		Answers:        snap.Answers,
		Offenses:       snap.Offenses,
		ActiveQuestion: snap.ActiveQuestion,
		Progress:       sess.Store().SolvedCount(),
	}
}
