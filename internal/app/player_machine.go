package app

import "github.com/Victorpalkin/quizliveapp-sub005/internal/domain"

// PlayerPhase is where one player sits in the question lifecycle. It mirrors
// the game state but adds the answered/result split a player sees.
type PlayerPhase string

const (
	PhaseJoining   PlayerPhase = "joining"
	PhaseLobby     PlayerPhase = "lobby"
	PhasePreparing PlayerPhase = "preparing"
	PhaseQuestion  PlayerPhase = "question"
	PhaseResult    PlayerPhase = "result"
	PhaseEnded     PlayerPhase = "ended"
	PhaseCanceled  PlayerPhase = "canceled"
)

// Effect is a command the machine's owner must carry out. The machine never
// performs I/O itself; the connection loop that drives it does.
type Effect int

const (
	// EffectStartTimer starts the local countdown for the active question.
	EffectStartTimer Effect = iota
	// EffectStopTimer cancels the countdown.
	EffectStopTimer
	// EffectSubmitTimeout records a no-selection timeout answer.
	EffectSubmitTimeout
	// EffectShowResult renders the player's result (or "no answer") view.
	EffectShowResult
)

// PlayerMachine tracks a single player's position in the game. It is driven
// by explicit events from one connection loop and is not safe for concurrent
// use; the synchronous submitted flag is the double-submission guard.
//
// Three paths converge on PhaseResult for a question: an explicit submission,
// the local timer reaching zero, and the forced transition taken when the
// host has already moved on while this player had not answered.
type PlayerMachine struct {
	phase         PlayerPhase
	questionIndex int
	submitted     bool
	timedOut      bool
}

func NewPlayerMachine() *PlayerMachine {
	return &PlayerMachine{phase: PhaseJoining, questionIndex: -1}
}

// Phase returns the current player-visible phase.
func (m *PlayerMachine) Phase() PlayerPhase { return m.phase }

// QuestionIndex returns the question the machine is tracking.
func (m *PlayerMachine) QuestionIndex() int { return m.questionIndex }

// Submitted reports whether the current question already has an answer
// (explicit or timeout).
func (m *PlayerMachine) Submitted() bool { return m.submitted }

// TimedOut reports whether the current question ended without a selection.
func (m *PlayerMachine) TimedOut() bool { return m.timedOut }

// ObserveGame feeds an observed game state into the machine and returns the
// effects the owner must apply. This is where forced transitions happen:
// if the host already advanced past the question this player was still
// answering, the machine converges on the same result view a timeout
// produces locally.
func (m *PlayerMachine) ObserveGame(state domain.GameState, questionIndex int) []Effect {
	switch state {
	case domain.StateEnded:
		m.phase = PhaseEnded
		return []Effect{EffectStopTimer}
	case domain.StateCanceled:
		m.phase = PhaseCanceled
		return []Effect{EffectStopTimer}
	}
	if m.phase == PhaseEnded || m.phase == PhaseCanceled {
		return nil
	}

	switch state {
	case domain.StateLobby:
		m.phase = PhaseLobby
		return nil

	case domain.StatePreparing:
		var effects []Effect
		if questionIndex != m.questionIndex {
			// Reset transient per-question state exactly once per index
			// change, not on every observation.
			m.resetForQuestion(questionIndex)
			effects = append(effects, EffectStopTimer)
		}
		m.phase = PhasePreparing
		return effects

	case domain.StateQuestion:
		if questionIndex != m.questionIndex {
			m.resetForQuestion(questionIndex)
		}
		if m.submitted {
			// Reconnect after answering lands back on the waiting view.
			m.phase = PhaseResult
			return nil
		}
		if m.phase != PhaseQuestion {
			m.phase = PhaseQuestion
			return []Effect{EffectStartTimer}
		}
		return nil

	case domain.StateLeaderboard:
		if m.phase == PhaseQuestion && !m.submitted {
			// Forced transition: the host finalized the question first.
			m.submitted = true
			m.timedOut = true
			m.phase = PhaseResult
			return []Effect{EffectStopTimer, EffectShowResult}
		}
		m.phase = PhaseResult
		return []Effect{EffectStopTimer}
	}
	return nil
}

// Submit is the synchronous double-submission guard: it flips the submitted
// flag before any network call is made, and reports whether the caller may
// proceed with the submission.
func (m *PlayerMachine) Submit() bool {
	if m.phase != PhaseQuestion || m.submitted {
		return false
	}
	m.submitted = true
	m.phase = PhaseResult
	return true
}

// TimerExpired handles the local countdown reaching zero: the player moves
// to the result view with a timeout answer, without waiting for the server.
func (m *PlayerMachine) TimerExpired() []Effect {
	if m.phase != PhaseQuestion || m.submitted {
		return nil
	}
	m.submitted = true
	m.timedOut = true
	m.phase = PhaseResult
	return []Effect{EffectSubmitTimeout, EffectShowResult}
}

func (m *PlayerMachine) resetForQuestion(questionIndex int) {
	m.questionIndex = questionIndex
	m.submitted = false
	m.timedOut = false
}
