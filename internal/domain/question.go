package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionKind discriminates the question variants on the wire.
type QuestionKind string

const (
	KindSingleChoice   QuestionKind = "single-choice"
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindSlider         QuestionKind = "slider"
	KindFreeResponse   QuestionKind = "free-response"
	KindSlide          QuestionKind = "slide"
	KindPollSingle     QuestionKind = "poll-single"
	KindPollMultiple   QuestionKind = "poll-multiple"
)

// Variant carries the kind-specific correctness and scoring parameters.
// Scoring and rendering switch exhaustively on the concrete type.
type Variant interface {
	Kind() QuestionKind
}

// SingleChoice has exactly one correct option.
type SingleChoice struct {
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

func (SingleChoice) Kind() QuestionKind { return KindSingleChoice }

// MultipleChoice has one or more correct options and awards partial credit.
type MultipleChoice struct {
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctIndices"`
}

func (MultipleChoice) Kind() QuestionKind { return KindMultipleChoice }

// Slider asks for a numeric value in [Min, Max]. Tolerance zero means the
// default of 5% of the range.
type Slider struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	CorrectValue float64 `json:"correctValue"`
	Tolerance    float64 `json:"tolerance,omitempty"`
}

func (Slider) Kind() QuestionKind { return KindSlider }

// Range returns the slider span, never negative.
func (s Slider) Range() float64 {
	if s.Max <= s.Min {
		return 0
	}
	return s.Max - s.Min
}

// EffectiveTolerance resolves the configured tolerance or the 5%-of-range default.
func (s Slider) EffectiveTolerance() float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return s.Range() * 0.05
}

// FreeResponse matches normalized text against a set of accepted answers.
type FreeResponse struct {
	Accepted []string `json:"accepted"`
}

func (FreeResponse) Kind() QuestionKind { return KindFreeResponse }

// Slide is informational and unscored; submissions record a view only.
type Slide struct {
	Body string `json:"body,omitempty"`
}

func (Slide) Kind() QuestionKind { return KindSlide }

// PollSingle collects one unscored selection per player.
type PollSingle struct {
	Options []string `json:"options"`
}

func (PollSingle) Kind() QuestionKind { return KindPollSingle }

// PollMultiple collects any number of unscored selections per player.
type PollMultiple struct {
	Options []string `json:"options"`
}

func (PollMultiple) Kind() QuestionKind { return KindPollMultiple }

// Question is one slide or question of a quiz.
type Question struct {
	ID               string  `json:"id"`
	Prompt           string  `json:"prompt"`
	TimeLimitSeconds int     `json:"timeLimitSeconds"`
	Variant          Variant `json:"-"`
}

// Scored reports whether submissions to this question can earn points.
func (q Question) Scored() bool {
	switch q.Variant.(type) {
	case SingleChoice, MultipleChoice, Slider, FreeResponse:
		return true
	case Slide, PollSingle, PollMultiple:
		return false
	default:
		return false
	}
}

// Quiz is the stored content a game is played from.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// questionJSON is the wire envelope: the variant fields are flattened next
// to the common ones and dispatched on "kind".
type questionJSON struct {
	ID               string       `json:"id"`
	Kind             QuestionKind `json:"kind"`
	Prompt           string       `json:"prompt"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`

	Options        []string `json:"options,omitempty"`
	CorrectIndex   *int     `json:"correctIndex,omitempty"`
	CorrectIndices []int    `json:"correctIndices,omitempty"`
	Min            float64  `json:"min,omitempty"`
	Max            float64  `json:"max,omitempty"`
	CorrectValue   float64  `json:"correctValue,omitempty"`
	Tolerance      float64  `json:"tolerance,omitempty"`
	Accepted       []string `json:"accepted,omitempty"`
	Body           string   `json:"body,omitempty"`
}

// MarshalJSON flattens the variant into the envelope.
func (q Question) MarshalJSON() ([]byte, error) {
	env := questionJSON{
		ID:               q.ID,
		Prompt:           q.Prompt,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
	switch v := q.Variant.(type) {
	case SingleChoice:
		env.Kind = KindSingleChoice
		env.Options = v.Options
		idx := v.CorrectIndex
		env.CorrectIndex = &idx
	case MultipleChoice:
		env.Kind = KindMultipleChoice
		env.Options = v.Options
		env.CorrectIndices = v.CorrectIndices
	case Slider:
		env.Kind = KindSlider
		env.Min = v.Min
		env.Max = v.Max
		env.CorrectValue = v.CorrectValue
		env.Tolerance = v.Tolerance
	case FreeResponse:
		env.Kind = KindFreeResponse
		env.Accepted = v.Accepted
	case Slide:
		env.Kind = KindSlide
		env.Body = v.Body
	case PollSingle:
		env.Kind = KindPollSingle
		env.Options = v.Options
	case PollMultiple:
		env.Kind = KindPollMultiple
		env.Options = v.Options
	default:
		return nil, fmt.Errorf("question %q: unknown variant %T", q.ID, q.Variant)
	}
	return json.Marshal(env)
}

// UnmarshalJSON dispatches on the kind discriminator; unknown kinds are an error.
func (q *Question) UnmarshalJSON(data []byte) error {
	var env questionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	q.ID = env.ID
	q.Prompt = env.Prompt
	q.TimeLimitSeconds = env.TimeLimitSeconds

	switch env.Kind {
	case KindSingleChoice:
		idx := 0
		if env.CorrectIndex != nil {
			idx = *env.CorrectIndex
		}
		q.Variant = SingleChoice{Options: env.Options, CorrectIndex: idx}
	case KindMultipleChoice:
		q.Variant = MultipleChoice{Options: env.Options, CorrectIndices: env.CorrectIndices}
	case KindSlider:
		q.Variant = Slider{Min: env.Min, Max: env.Max, CorrectValue: env.CorrectValue, Tolerance: env.Tolerance}
	case KindFreeResponse:
		q.Variant = FreeResponse{Accepted: env.Accepted}
	case KindSlide:
		q.Variant = Slide{Body: env.Body}
	case KindPollSingle:
		q.Variant = PollSingle{Options: env.Options}
	case KindPollMultiple:
		q.Variant = PollMultiple{Options: env.Options}
	default:
		return fmt.Errorf("question %q: unknown kind %q", env.ID, env.Kind)
	}
	return nil
}

// Answer is the submitted response for one question. Exactly the fields
// relevant to the question kind are set; a timeout carries no selection.
type Answer struct {
	OptionIndex   *int     `json:"optionIndex,omitempty"`
	OptionIndices []int    `json:"optionIndices,omitempty"`
	Value         *float64 `json:"value,omitempty"`
	Text          string   `json:"text,omitempty"`
}
