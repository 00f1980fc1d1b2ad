package scoring

import (
	"testing"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

func singleChoiceQuestion() domain.Question {
	return domain.Question{
		ID:               "q1",
		Prompt:           "Pick the right one",
		TimeLimitSeconds: 20,
		Variant:          domain.SingleChoice{Options: []string{"a", "b", "c"}, CorrectIndex: 1},
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestSingleChoiceFullSpeed(t *testing.T) {
	q := singleChoiceQuestion()
	res := Score(q, domain.Answer{OptionIndex: intPtr(1)}, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if res.Points != 1000 || !res.IsCorrect {
		t.Fatalf("expected 1000 points correct, got %+v", res)
	}
}

func TestSingleChoiceLastMoment(t *testing.T) {
	q := singleChoiceQuestion()
	res := Score(q, domain.Answer{OptionIndex: intPtr(1)}, false, Timing{RemainingSeconds: 0, LimitSeconds: 20})
	if res.Points != 100 {
		t.Fatalf("expected base 100 points at zero remaining, got %d", res.Points)
	}
}

func TestSingleChoiceWrongOrMissing(t *testing.T) {
	q := singleChoiceQuestion()
	for _, ans := range []domain.Answer{{OptionIndex: intPtr(0)}, {OptionIndex: intPtr(2)}, {}} {
		res := Score(q, ans, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
		if res.Points != 0 || res.IsCorrect {
			t.Fatalf("expected zero for %+v, got %+v", ans, res)
		}
	}
}

func TestSingleChoiceBounds(t *testing.T) {
	q := singleChoiceQuestion()
	timings := []Timing{
		{RemainingSeconds: -5, LimitSeconds: 20},
		{RemainingSeconds: 50, LimitSeconds: 20},
		{RemainingSeconds: 10, LimitSeconds: 0},
		{RemainingSeconds: 7, LimitSeconds: 20},
	}
	for _, tm := range timings {
		res := Score(q, domain.Answer{OptionIndex: intPtr(1)}, false, tm)
		if res.Points < 0 || res.Points > MaxPoints {
			t.Fatalf("points out of range for timing %+v: %d", tm, res.Points)
		}
	}
}

func TestMultipleChoiceFullCredit(t *testing.T) {
	q := domain.Question{
		ID:               "q2",
		TimeLimitSeconds: 20,
		Variant:          domain.MultipleChoice{Options: []string{"a", "b", "c", "d"}, CorrectIndices: []int{0, 2}},
	}
	res := Score(q, domain.Answer{OptionIndices: []int{0, 2}}, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if res.Points != 1000 || !res.IsCorrect || res.IsPartiallyCorrect {
		t.Fatalf("expected full credit 1000, got %+v", res)
	}
}

func TestMultipleChoicePartialCredit(t *testing.T) {
	q := domain.Question{
		ID:               "q2",
		TimeLimitSeconds: 20,
		Variant:          domain.MultipleChoice{Options: []string{"a", "b", "c", "d"}, CorrectIndices: []int{0, 2}},
	}
	// 1 of 2 correct plus 1 wrong: multiplier 0.5 - 0.2 = 0.3.
	res := Score(q, domain.Answer{OptionIndices: []int{0, 1}}, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if res.Points != 300 {
		t.Fatalf("expected 300 points, got %d", res.Points)
	}
	if !res.IsPartiallyCorrect || res.IsCorrect {
		t.Fatalf("expected partially correct, got %+v", res)
	}
}

func TestMultipleChoiceWrongSelectionsNeverHelp(t *testing.T) {
	q := domain.Question{
		ID:               "q2",
		TimeLimitSeconds: 20,
		Variant:          domain.MultipleChoice{Options: []string{"a", "b", "c", "d", "e"}, CorrectIndices: []int{0, 2}},
	}
	tm := Timing{RemainingSeconds: 15, LimitSeconds: 20}
	prev := -1
	wrongPool := []int{1, 3, 4}
	for wrong := len(wrongPool); wrong >= 0; wrong-- {
		selection := append([]int{0, 2}, wrongPool[:wrong]...)
		res := Score(q, domain.Answer{OptionIndices: selection}, false, tm)
		if prev >= 0 && res.Points < prev {
			t.Fatalf("score decreased when removing a wrong selection: %d -> %d", prev, res.Points)
		}
		prev = res.Points
	}
}

func TestMultipleChoiceDuplicateSelectionsIgnored(t *testing.T) {
	q := domain.Question{
		ID:               "q2",
		TimeLimitSeconds: 20,
		Variant:          domain.MultipleChoice{Options: []string{"a", "b"}, CorrectIndices: []int{0}},
	}
	tm := Timing{RemainingSeconds: 20, LimitSeconds: 20}
	once := Score(q, domain.Answer{OptionIndices: []int{0}}, false, tm)
	twice := Score(q, domain.Answer{OptionIndices: []int{0, 0}}, false, tm)
	if once.Points != twice.Points {
		t.Fatalf("duplicate selection changed score: %d vs %d", once.Points, twice.Points)
	}
}

func sliderQuestion() domain.Question {
	return domain.Question{
		ID:               "q3",
		TimeLimitSeconds: 20,
		Variant:          domain.Slider{Min: 0, Max: 100, CorrectValue: 50, Tolerance: 5},
	}
}

func TestSliderWithinTolerance(t *testing.T) {
	res := Score(sliderQuestion(), domain.Answer{Value: floatPtr(52)}, false, Timing{RemainingSeconds: 10, LimitSeconds: 20})
	if !res.IsCorrect {
		t.Fatalf("52 should be within tolerance 5 of 50, got %+v", res)
	}
	if res.Points <= 0 || res.Points > MaxPoints {
		t.Fatalf("points out of range: %d", res.Points)
	}
}

func TestSliderOutsideTolerance(t *testing.T) {
	res := Score(sliderQuestion(), domain.Answer{Value: floatPtr(60)}, false, Timing{RemainingSeconds: 10, LimitSeconds: 20})
	if res.IsCorrect {
		t.Fatalf("60 should be outside tolerance, got %+v", res)
	}
	if res.Points <= 0 {
		t.Fatalf("expected reduced but nonzero points, got %d", res.Points)
	}
}

func TestSliderMonotoneInDistance(t *testing.T) {
	tm := Timing{RemainingSeconds: 12, LimitSeconds: 20}
	prev := MaxPoints + 1
	for _, value := range []float64{50, 53, 60, 75, 100} {
		res := Score(sliderQuestion(), domain.Answer{Value: floatPtr(value)}, false, tm)
		if res.Points > prev {
			t.Fatalf("score increased with distance at value %v: %d > %d", value, res.Points, prev)
		}
		prev = res.Points
	}
}

func TestSliderDefaultTolerance(t *testing.T) {
	q := domain.Question{
		ID:               "q3",
		TimeLimitSeconds: 20,
		Variant:          domain.Slider{Min: 0, Max: 200, CorrectValue: 100},
	}
	// Default tolerance is 5% of range = 10.
	near := Score(q, domain.Answer{Value: floatPtr(109)}, false, Timing{RemainingSeconds: 0, LimitSeconds: 20})
	far := Score(q, domain.Answer{Value: floatPtr(112)}, false, Timing{RemainingSeconds: 0, LimitSeconds: 20})
	if !near.IsCorrect || far.IsCorrect {
		t.Fatalf("default tolerance mismatch: near=%+v far=%+v", near, far)
	}
}

func TestFreeResponseNormalizedMatch(t *testing.T) {
	q := domain.Question{
		ID:               "q4",
		TimeLimitSeconds: 20,
		Variant:          domain.FreeResponse{Accepted: []string{"Oslo", "oslo city"}},
	}
	res := Score(q, domain.Answer{Text: "  OSLO "}, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if !res.IsCorrect || res.Points != 1000 {
		t.Fatalf("expected normalized match at 1000, got %+v", res)
	}
	miss := Score(q, domain.Answer{Text: "Bergen"}, false, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if miss.IsCorrect || miss.Points != 0 {
		t.Fatalf("expected miss, got %+v", miss)
	}
}

func TestUnscoredKinds(t *testing.T) {
	tm := Timing{RemainingSeconds: 20, LimitSeconds: 20}
	questions := []domain.Question{
		{ID: "s1", Variant: domain.Slide{Body: "welcome"}},
		{ID: "p1", Variant: domain.PollSingle{Options: []string{"a", "b"}}},
		{ID: "p2", Variant: domain.PollMultiple{Options: []string{"a", "b"}}},
	}
	for _, q := range questions {
		res := Score(q, domain.Answer{OptionIndex: intPtr(0)}, false, tm)
		if res.Points != 0 || res.IsCorrect || res.IsPartiallyCorrect {
			t.Fatalf("kind %s should be unscored, got %+v", q.Variant.Kind(), res)
		}
	}
}

func TestTimeoutAlwaysZero(t *testing.T) {
	res := Score(singleChoiceQuestion(), domain.Answer{OptionIndex: intPtr(1)}, true, Timing{RemainingSeconds: 20, LimitSeconds: 20})
	if res.Points != 0 || res.IsCorrect {
		t.Fatalf("timeout must score zero, got %+v", res)
	}
}

func TestDeterminism(t *testing.T) {
	q := domain.Question{
		ID:               "q2",
		TimeLimitSeconds: 30,
		Variant:          domain.MultipleChoice{Options: []string{"a", "b", "c"}, CorrectIndices: []int{0, 1}},
	}
	ans := domain.Answer{OptionIndices: []int{0, 2}}
	tm := Timing{RemainingSeconds: 13.37, LimitSeconds: 30}
	first := Score(q, ans, false, tm)
	for i := 0; i < 100; i++ {
		if got := Score(q, ans, false, tm); got != first {
			t.Fatalf("nondeterministic score: %+v vs %+v", got, first)
		}
	}
}
