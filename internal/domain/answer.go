package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type AnswerKind string

const (
	AnswerSelection AnswerKind = "selection"
	AnswerText      AnswerKind = "text"
	AnswerCode      AnswerKind = "code"
)

// Answer is a closed union: Selection, FreeText or Code.
type Answer interface {
	Kind() AnswerKind
	// Empty answers are removed from the store instead of being kept.
	Empty() bool
	isAnswer()
}

type Selection struct {
	OptionIDs []string
}

func (Selection) Kind() AnswerKind { return AnswerSelection }
func (s Selection) Empty() bool    { return len(s.OptionIDs) == 0 }
func (Selection) isAnswer()        {}

type FreeText struct {
	Text string
}

func (FreeText) Kind() AnswerKind { return AnswerText }
func (t FreeText) Empty() bool    { return strings.TrimSpace(t.Text) == "" }
func (FreeText) isAnswer()        {}

type Code struct {
	Language string
	Source   string
}

func (Code) Kind() AnswerKind { return AnswerCode }
func (c Code) Empty() bool    { return strings.TrimSpace(c.Source) == "" }
func (Code) isAnswer()        {}

// Accepts reports whether an answer's shape matches the question kind.
func Accepts(kind QuestionKind, a Answer) bool {
	if a == nil {
		return false
	}
	switch kind {
	case KindSingle, KindMulti:
		return a.Kind() == AnswerSelection
	case KindText:
		return a.Kind() == AnswerText
	case KindCode:
		return a.Kind() == AnswerCode
	}
	return false
}

type answerEnvelope struct {
	Kind      AnswerKind `json:"kind"`
	OptionIDs []string   `json:"optionIds,omitempty"`
	Text      string     `json:"text,omitempty"`
	Language  string     `json:"language,omitempty"`
	Source    string     `json:"source,omitempty"`
}

func EncodeAnswer(a Answer) ([]byte, error) {
	var env answerEnvelope
	switch v := a.(type) {
	case Selection:
		env = answerEnvelope{Kind: AnswerSelection, OptionIDs: v.OptionIDs}
	case FreeText:
		env = answerEnvelope{Kind: AnswerText, Text: v.Text}
	case Code:
		env = answerEnvelope{Kind: AnswerCode, Language: v.Language, Source: v.Source}
	default:
		return nil, fmt.Errorf("encode answer: unsupported type %T", a)
	}
	return json.Marshal(env)
}

func DecodeAnswer(raw []byte) (Answer, error) {
	var env answerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	switch env.Kind {
	case AnswerSelection:
		return Selection{OptionIDs: env.OptionIDs}, nil
	case AnswerText:
		return FreeText{Text: env.Text}, nil
	case AnswerCode:
		return Code{Language: env.Language, Source: env.Source}, nil
	}
	return nil, fmt.Errorf("decode answer: unknown kind %q", env.Kind)
}

// Answers maps question ids to answers and serializes each one as a tagged envelope.
type Answers map[string]Answer

func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if s, ok := v.(Selection); ok {
			v = Selection{OptionIDs: append([]string(nil), s.OptionIDs...)}
		}
		out[k] = v
	}
	return out
}

func (a Answers) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(a))
	for id, ans := range a {
		b, err := EncodeAnswer(ans)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", id, err)
		}
		raw[id] = b
	}
	return json.Marshal(raw)
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Answers, len(raw))
	for id, msg := range raw {
		ans, err := DecodeAnswer(msg)
		if err != nil {
			return fmt.Errorf("question %s: %w", id, err)
		}
		out[id] = ans
	}
	*a = out
	return nil
}
