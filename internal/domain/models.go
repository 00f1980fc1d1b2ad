package domain

import "time"

// GameState is the lifecycle phase of a live game.
type GameState string

const (
	StateLobby       GameState = "lobby"
	StatePreparing   GameState = "preparing"
	StateQuestion    GameState = "question"
	StateLeaderboard GameState = "leaderboard"
	StateEnded       GameState = "ended"
	StateCanceled    GameState = "canceled"
)

// Terminal reports whether the state can never be left again.
func (s GameState) Terminal() bool {
	return s == StateEnded || s == StateCanceled
}

// Game is one active play session of a quiz, joined by PIN.
type Game struct {
	PIN               string    `json:"pin"`
	QuizID            string    `json:"quizId"`
	State             GameState `json:"state"`
	QuestionIndex     int       `json:"questionIndex"`
	QuestionStartedAt time.Time `json:"questionStartedAt,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AnswerRecord is one player's submission (or timeout) for one question.
type AnswerRecord struct {
	QuestionIndex      int       `json:"questionIndex"`
	Answer             Answer    `json:"answer"`
	IsCorrect          bool      `json:"isCorrect"`
	IsPartiallyCorrect bool      `json:"isPartiallyCorrect"`
	Points             int       `json:"points"`
	TimedOut           bool      `json:"timedOut"`
	AnsweredAt         time.Time `json:"answeredAt"`
}

// Player is one participant in a game. Answer records are append-only,
// at most one per question index.
type Player struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Score       int            `json:"score"`
	Streak      int            `json:"streak"`
	Answers     []AnswerRecord `json:"answers"`
	JoinedAt    time.Time      `json:"joinedAt"`
	// LastScoredAt orders leaderboard ties: whoever reached the score first wins.
	LastScoredAt time.Time `json:"lastScoredAt"`
}

// AnswerFor returns the player's record for a question index, if any.
func (p *Player) AnswerFor(index int) (AnswerRecord, bool) {
	for i := range p.Answers {
		if p.Answers[i].QuestionIndex == index {
			return p.Answers[i], true
		}
	}
	return AnswerRecord{}, false
}

// LeaderboardEntry is a snapshot-friendly view of a ranked player.
type LeaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// Leaderboard is the derived aggregate document for a game: bounded top-N
// entries plus per-question answer counters. It is never the source of
// truth; it can always be rebuilt from player answer records.
type Leaderboard struct {
	GamePIN       string             `json:"gamePin"`
	QuestionIndex int                `json:"questionIndex"`
	Entries       []LeaderboardEntry `json:"entries"`
	PlayerCount   int                `json:"playerCount"`
	AnsweredCount int                `json:"answeredCount"`
	// Counts buckets answers for the current question (option index,
	// "correct"/"incorrect", or "viewed" depending on the question kind).
	Counts map[string]int `json:"counts,omitempty"`
	// Final is set once the question-results recompute has overwritten the
	// live-incremented counters with an authoritative snapshot.
	Final     bool      `json:"final"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubmitResult is what the answer-submission boundary returns to the caller.
type SubmitResult struct {
	Points             int  `json:"points"`
	NewScore           int  `json:"newScore"`
	Streak             int  `json:"streak"`
	IsCorrect          bool `json:"isCorrect"`
	IsPartiallyCorrect bool `json:"isPartiallyCorrect"`
}
