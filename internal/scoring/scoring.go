// Package scoring computes points for answer submissions. Every function is
// pure and deterministic so that an optimistic client-side prediction always
// matches the server's recomputation for identical inputs.
package scoring

import (
	"math"
	"strings"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// MaxPoints caps what a single question can award.
const MaxPoints = 1000

const (
	baseCorrect  = 100
	maxTimeBonus = 900
	wrongPenalty = 0.2
)

// Timing captures when the answer arrived relative to the question window.
// Values are clamped before use; negative or nonsense inputs never panic.
type Timing struct {
	RemainingSeconds float64
	LimitSeconds     float64
}

// fraction is the remaining share of the answer window in [0, 1].
func (t Timing) fraction() float64 {
	if t.LimitSeconds <= 0 {
		return 0
	}
	f := t.RemainingSeconds / t.LimitSeconds
	return clamp01(f)
}

// Result is the outcome of scoring one submission.
type Result struct {
	Points             int
	IsCorrect          bool
	IsPartiallyCorrect bool
}

// Score evaluates an answer against a question. A timed-out submission earns
// zero regardless of kind; unscored kinds (slide, polls) record the response
// and earn zero.
func Score(q domain.Question, ans domain.Answer, timedOut bool, t Timing) Result {
	if timedOut {
		return Result{}
	}
	switch v := q.Variant.(type) {
	case domain.SingleChoice:
		return scoreSingleChoice(v, ans, t)
	case domain.MultipleChoice:
		return scoreMultipleChoice(v, ans, t)
	case domain.Slider:
		return scoreSlider(v, ans, t)
	case domain.FreeResponse:
		return scoreFreeResponse(v, ans, t)
	case domain.Slide, domain.PollSingle, domain.PollMultiple:
		return Result{}
	default:
		return Result{}
	}
}

// scoreSingleChoice: correct earns the base plus a time bonus proportional to
// the remaining fraction of the window; incorrect earns nothing.
func scoreSingleChoice(v domain.SingleChoice, ans domain.Answer, t Timing) Result {
	if ans.OptionIndex == nil || *ans.OptionIndex != v.CorrectIndex {
		return Result{}
	}
	return Result{Points: timedPoints(1, t), IsCorrect: true}
}

// scoreMultipleChoice awards partial credit: each missing correct option
// reduces the correct fraction, each wrong selection costs a flat penalty.
// The multiplier scales the same timed score a single-choice answer earns.
func scoreMultipleChoice(v domain.MultipleChoice, ans domain.Answer, t Timing) Result {
	if len(v.CorrectIndices) == 0 {
		return Result{}
	}
	correctSet := make(map[int]struct{}, len(v.CorrectIndices))
	for _, idx := range v.CorrectIndices {
		correctSet[idx] = struct{}{}
	}
	hit, wrong := 0, 0
	seen := make(map[int]struct{}, len(ans.OptionIndices))
	for _, idx := range ans.OptionIndices {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		if _, ok := correctSet[idx]; ok {
			hit++
		} else {
			wrong++
		}
	}

	correctFraction := float64(hit) / float64(len(correctSet))
	multiplier := correctFraction - wrongPenalty*float64(wrong)
	if multiplier <= 0 {
		return Result{}
	}
	full := hit == len(correctSet) && wrong == 0
	return Result{
		Points:             timedPoints(multiplier, t),
		IsCorrect:          full,
		IsPartiallyCorrect: !full,
	}
}

// scoreSlider splits the score between accuracy and speed. Accuracy decays
// quadratically with normalized distance from the target; the correctness
// flag tracks the configured tolerance only.
func scoreSlider(v domain.Slider, ans domain.Answer, t Timing) Result {
	if ans.Value == nil {
		return Result{}
	}
	span := v.Range()
	if span <= 0 {
		return Result{}
	}
	distance := math.Abs(*ans.Value - v.CorrectValue)
	normalized := clamp01(distance / span)
	accuracy := 500 * (1 - normalized) * (1 - normalized)
	speed := 500 * t.fraction()
	points := int(math.Round(accuracy + speed))
	if points > MaxPoints {
		points = MaxPoints
	}
	return Result{
		Points:    points,
		IsCorrect: distance <= v.EffectiveTolerance(),
	}
}

// scoreFreeResponse matches normalized text against accepted answers and
// scores a hit like a correct single-choice answer.
func scoreFreeResponse(v domain.FreeResponse, ans domain.Answer, t Timing) Result {
	submitted := normalizeText(ans.Text)
	if submitted == "" {
		return Result{}
	}
	for _, accepted := range v.Accepted {
		if normalizeText(accepted) == submitted {
			return Result{Points: timedPoints(1, t), IsCorrect: true}
		}
	}
	return Result{}
}

// timedPoints scales the base-plus-time-bonus score by a credit multiplier
// and caps the result.
func timedPoints(multiplier float64, t Timing) int {
	raw := multiplier * (baseCorrect + maxTimeBonus*t.fraction())
	points := int(math.Round(raw))
	if points < 0 {
		return 0
	}
	if points > MaxPoints {
		return MaxPoints
	}
	return points
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
