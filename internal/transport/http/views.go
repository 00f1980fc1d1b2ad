package http

import "github.com/Victorpalkin/quizliveapp-sub005/internal/domain"

// questionView is what players are shown: the prompt and the answer surface,
// never the correctness parameters.
type questionView struct {
	ID               string              `json:"id"`
	Kind             domain.QuestionKind `json:"kind"`
	Prompt           string              `json:"prompt"`
	Index            int                 `json:"index"`
	TimeLimitSeconds int                 `json:"timeLimitSeconds"`
	Options          []string            `json:"options,omitempty"`
	Min              *float64            `json:"min,omitempty"`
	Max              *float64            `json:"max,omitempty"`
	Body             string              `json:"body,omitempty"`
}

func newQuestionView(q domain.Question, index int) questionView {
	view := questionView{
		ID:               q.ID,
		Kind:             q.Variant.Kind(),
		Prompt:           q.Prompt,
		Index:            index,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
	switch v := q.Variant.(type) {
	case domain.SingleChoice:
		view.Options = v.Options
	case domain.MultipleChoice:
		view.Options = v.Options
	case domain.PollSingle:
		view.Options = v.Options
	case domain.PollMultiple:
		view.Options = v.Options
	case domain.Slider:
		min, max := v.Min, v.Max
		view.Min, view.Max = &min, &max
	case domain.Slide:
		view.Body = v.Body
	case domain.FreeResponse:
		// Free text: nothing beyond the prompt.
	}
	return view
}

type gameStateView struct {
	PIN           string           `json:"pin"`
	State         domain.GameState `json:"state"`
	QuestionIndex int              `json:"questionIndex"`
}

func newGameStateView(game domain.Game) gameStateView {
	return gameStateView{
		PIN:           game.PIN,
		State:         game.State,
		QuestionIndex: game.QuestionIndex,
	}
}

// resultView is the converged per-question outcome a player sees, whether it
// came from an explicit answer, a local timeout, or a forced transition.
type resultView struct {
	QuestionIndex      int  `json:"questionIndex"`
	NoAnswer           bool `json:"noAnswer"`
	Points             int  `json:"points"`
	TotalScore         int  `json:"totalScore"`
	Streak             int  `json:"streak"`
	IsCorrect          bool `json:"isCorrect"`
	IsPartiallyCorrect bool `json:"isPartiallyCorrect"`
}
