package app_test

import (
	"testing"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

func hasEffect(effects []app.Effect, want app.Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}

func TestPlayerMachineHappyPath(t *testing.T) {
	m := app.NewPlayerMachine()
	if m.Phase() != app.PhaseJoining {
		t.Fatalf("expected joining, got %s", m.Phase())
	}

	m.ObserveGame(domain.StateLobby, 0)
	if m.Phase() != app.PhaseLobby {
		t.Fatalf("expected lobby, got %s", m.Phase())
	}

	m.ObserveGame(domain.StatePreparing, 0)
	effects := m.ObserveGame(domain.StateQuestion, 0)
	if m.Phase() != app.PhaseQuestion || !hasEffect(effects, app.EffectStartTimer) {
		t.Fatalf("expected question with timer start, got %s %v", m.Phase(), effects)
	}

	if !m.Submit() {
		t.Fatalf("first submit must pass the guard")
	}
	if m.Phase() != app.PhaseResult {
		t.Fatalf("expected result after submit, got %s", m.Phase())
	}

	m.ObserveGame(domain.StateLeaderboard, 0)
	if m.Phase() != app.PhaseResult {
		t.Fatalf("expected result during leaderboard, got %s", m.Phase())
	}

	m.ObserveGame(domain.StateEnded, 0)
	if m.Phase() != app.PhaseEnded {
		t.Fatalf("expected ended, got %s", m.Phase())
	}
}

func TestPlayerMachineDoubleSubmitGuard(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 0)

	if !m.Submit() {
		t.Fatalf("first submit rejected")
	}
	if m.Submit() {
		t.Fatalf("second submit must be rejected")
	}
	// A late local timer after a submission must not fire a timeout.
	if effects := m.TimerExpired(); len(effects) != 0 {
		t.Fatalf("timer after submit must be a no-op, got %v", effects)
	}
}

func TestPlayerMachineTimerExpiry(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 0)

	effects := m.TimerExpired()
	if !hasEffect(effects, app.EffectSubmitTimeout) || !hasEffect(effects, app.EffectShowResult) {
		t.Fatalf("expected timeout submission and result view, got %v", effects)
	}
	if m.Phase() != app.PhaseResult || !m.TimedOut() {
		t.Fatalf("expected timed-out result, got %s timedOut=%v", m.Phase(), m.TimedOut())
	}
	if m.Submit() {
		t.Fatalf("submit after timeout must be rejected")
	}
}

func TestPlayerMachineForcedTransition(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 0)

	// Host already moved to results while this player had not answered.
	effects := m.ObserveGame(domain.StateLeaderboard, 0)
	if m.Phase() != app.PhaseResult || !m.TimedOut() {
		t.Fatalf("forced transition must converge on timed-out result, got %s timedOut=%v", m.Phase(), m.TimedOut())
	}
	if !hasEffect(effects, app.EffectShowResult) || !hasEffect(effects, app.EffectStopTimer) {
		t.Fatalf("expected stop timer and result view, got %v", effects)
	}
	if m.Submit() {
		t.Fatalf("submit after forced transition must be rejected")
	}
}

func TestPlayerMachineResetsOncePerIndexChange(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 0)
	m.TimerExpired()
	m.ObserveGame(domain.StateLeaderboard, 0)

	// Index advances: transient state clears exactly once.
	m.ObserveGame(domain.StatePreparing, 1)
	if m.Submitted() || m.TimedOut() || m.QuestionIndex() != 1 {
		t.Fatalf("expected cleared transients for question 1, got %+v", m)
	}

	// Re-observing the same preparing state must not clear again after a
	// submission sneaks in between renders.
	m.ObserveGame(domain.StateQuestion, 1)
	if !m.Submit() {
		t.Fatalf("submit on new question rejected")
	}
	m.ObserveGame(domain.StateQuestion, 1)
	if !m.Submitted() {
		t.Fatalf("repeat observation of same index cleared the submitted flag")
	}
}

func TestPlayerMachineReconnectAfterAnswer(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 2)
	if !m.Submit() {
		t.Fatalf("submit rejected")
	}

	// A reconnect replays the current game state; the machine lands on the
	// waiting view, not back in the question.
	effects := m.ObserveGame(domain.StateQuestion, 2)
	if m.Phase() != app.PhaseResult || hasEffect(effects, app.EffectStartTimer) {
		t.Fatalf("expected waiting view without timer restart, got %s %v", m.Phase(), effects)
	}
}

func TestPlayerMachineTerminalStates(t *testing.T) {
	m := app.NewPlayerMachine()
	m.ObserveGame(domain.StateQuestion, 0)
	m.ObserveGame(domain.StateCanceled, 0)
	if m.Phase() != app.PhaseCanceled {
		t.Fatalf("expected canceled, got %s", m.Phase())
	}
	m.ObserveGame(domain.StateQuestion, 1)
	if m.Phase() != app.PhaseCanceled {
		t.Fatalf("terminal state must not be left, got %s", m.Phase())
	}
	if m.Submit() {
		t.Fatalf("submit in terminal state must be rejected")
	}
}
