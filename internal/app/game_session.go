package app

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// TopN bounds how many ranked players the aggregate carries. Clients only
// ever receive this bounded list, never the full player set.
const TopN = 20

// Update is what subscribers receive whenever the game or its leaderboard
// changes.
type Update struct {
	Game        domain.Game        `json:"game"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// GameSession is the in-process instance of one live game: the game document,
// its players, and the subscriber fan-out. All mutation goes through the
// session mutex; cross-instance counters live in the AggregateStore.
type GameSession struct {
	mu          sync.RWMutex
	game        domain.Game
	now         func() time.Time
	players     map[string]*domain.Player
	subscribers map[chan Update]struct{}
	// liveCounts mirrors the per-question distribution for broadcasts so a
	// snapshot does not require a store round-trip. The AggregateStore keeps
	// the authoritative counters.
	liveCounts    map[string]int
	liveAnswered  int
	finalSnapshot *domain.Leaderboard
}

func newGameSession(game domain.Game) *GameSession {
	if game.State == "" {
		game.State = domain.StateLobby
	}
	game.CreatedAt = time.Now()
	return &GameSession{
		game:        game,
		now:         time.Now,
		players:     make(map[string]*domain.Player),
		subscribers: make(map[chan Update]struct{}),
		liveCounts:  make(map[string]int),
	}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(game domain.Game) *GameSession {
	return newGameSession(game)
}

// PIN returns the join code of the session's game.
func (s *GameSession) PIN() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game.PIN
}

// Game returns a copy of the current game document.
func (s *GameSession) Game() domain.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

// IsEmpty reports whether the session has no players.
func (s *GameSession) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players) == 0
}

// PlayerCount returns how many players the session holds.
func (s *GameSession) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *GameSession) join(playerID, displayName string, maxPlayers int) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.State.Terminal() {
		return Update{}, domain.ErrGameOver
	}
	now := s.now()
	if player, ok := s.players[playerID]; ok {
		// Rejoin after reconnect refreshes the name, keeps score and answers.
		player.DisplayName = displayName
	} else {
		if maxPlayers > 0 && len(s.players) >= maxPlayers {
			return Update{}, domain.ErrGameFull
		}
		s.players[playerID] = &domain.Player{
			ID:          playerID,
			DisplayName: displayName,
			JoinedAt:    now,
		}
	}
	return s.broadcastLocked(), nil
}

// leave handles a closed connection. In the lobby the player is removed; once
// the game is underway the record is kept so a reconnect with the same ID
// resumes with score and answers intact.
func (s *GameSession) leave(playerID string) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.State == domain.StateLobby {
		delete(s.players, playerID)
	}
	return s.broadcastLocked()
}

// player returns a copy of one player's current record.
func (s *GameSession) player(playerID string) (domain.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// applyAnswer records a scored submission for the given question index and
// returns the submission outcome. The double-submission guard lives here:
// one record per player per index, late indexes are rejected.
func (s *GameSession) applyAnswer(playerID string, questionIndex int, record domain.AnswerRecord) (domain.SubmitResult, Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.State != domain.StateQuestion || questionIndex != s.game.QuestionIndex {
		return domain.SubmitResult{}, Update{}, domain.ErrQuestionClosed
	}
	player, ok := s.players[playerID]
	if !ok {
		return domain.SubmitResult{}, Update{}, domain.ErrPlayerNotFound
	}
	if _, answered := player.AnswerFor(questionIndex); answered {
		return domain.SubmitResult{}, Update{}, domain.ErrAlreadyAnswered
	}

	record.QuestionIndex = questionIndex
	record.AnsweredAt = s.now()
	player.Answers = append(player.Answers, record)
	if record.Points > 0 {
		player.Score += record.Points
		player.LastScoredAt = record.AnsweredAt
	}
	if record.IsCorrect {
		player.Streak++
	} else {
		player.Streak = 0
	}

	s.liveAnswered++
	for _, bucket := range bucketsFor(record) {
		s.liveCounts[bucket]++
	}

	result := domain.SubmitResult{
		Points:             record.Points,
		NewScore:           player.Score,
		Streak:             player.Streak,
		IsCorrect:          record.IsCorrect,
		IsPartiallyCorrect: record.IsPartiallyCorrect,
	}
	return result, s.broadcastLocked(), nil
}

// transition moves the game between states after validating the edge.
// mutate runs under the session lock once the edge is accepted.
func (s *GameSession) transition(to domain.GameState, mutate func(game *domain.Game)) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validTransition(s.game.State, to) {
		return Update{}, domain.ErrBadTransition
	}
	if mutate != nil {
		mutate(&s.game)
	}
	s.game.State = to
	return s.broadcastLocked(), nil
}

// validTransition encodes the host state machine. Cancel is reachable from
// every non-terminal state.
func validTransition(from, to domain.GameState) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StateCanceled {
		return true
	}
	switch from {
	case domain.StateLobby:
		return to == domain.StatePreparing
	case domain.StatePreparing:
		return to == domain.StateQuestion
	case domain.StateQuestion:
		return to == domain.StateLeaderboard
	case domain.StateLeaderboard:
		return to == domain.StatePreparing || to == domain.StateEnded
	default:
		return false
	}
}

// resetQuestionTransients clears the live per-question counters. Called
// before the question index advances so a straggling answer to the old
// question cannot leak into the new one.
func (s *GameSession) resetQuestionTransients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveCounts = make(map[string]int)
	s.liveAnswered = 0
	s.finalSnapshot = nil
}

// setFinalSnapshot installs the recomputed aggregate so subsequent
// broadcasts carry authoritative numbers.
func (s *GameSession) setFinalSnapshot(snap domain.Leaderboard) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalSnapshot = &snap
	return s.broadcastLocked()
}

// buildSnapshot recomputes the aggregate for a question index purely from
// player answer records. Running it twice with the same records yields the
// same document, which is what makes the results-compute step idempotent.
func (s *GameSession) buildSnapshot(questionIndex int) domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	answered := 0
	// The snapshot is stamped from the records, not the wall clock, so two
	// rebuilds over the same submissions produce byte-identical documents.
	updated := s.game.QuestionStartedAt
	for _, player := range s.players {
		record, ok := player.AnswerFor(questionIndex)
		if !ok {
			continue
		}
		answered++
		if record.AnsweredAt.After(updated) {
			updated = record.AnsweredAt
		}
		for _, bucket := range bucketsFor(record) {
			counts[bucket]++
		}
	}
	return domain.Leaderboard{
		GamePIN:       s.game.PIN,
		QuestionIndex: questionIndex,
		Entries:       s.topNLocked(TopN),
		PlayerCount:   len(s.players),
		AnsweredCount: answered,
		Counts:        counts,
		Final:         true,
		UpdatedAt:     updated,
	}
}

func (s *GameSession) subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *GameSession) broadcastLocked() Update {
	update := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Drop the stale update so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
	return update
}

func (s *GameSession) snapshotLocked() Update {
	lb := domain.Leaderboard{
		GamePIN:       s.game.PIN,
		QuestionIndex: s.game.QuestionIndex,
		Entries:       s.topNLocked(TopN),
		PlayerCount:   len(s.players),
		AnsweredCount: s.liveAnswered,
		Counts:        copyCounts(s.liveCounts),
		UpdatedAt:     s.now(),
	}
	if s.finalSnapshot != nil && s.finalSnapshot.QuestionIndex == s.game.QuestionIndex {
		lb = *s.finalSnapshot
	}
	return Update{Game: s.game, Leaderboard: lb}
}

// topNLocked ranks players by score descending. Ties go to whoever reached
// the score first, then by display name for stability.
func (s *GameSession) topNLocked(n int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, player := range s.players {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:    player.ID,
			DisplayName: player.DisplayName,
			Score:       player.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := s.players[entries[i].PlayerID]
		pj := s.players[entries[j].PlayerID]
		if pi != nil && pj != nil && !pi.LastScoredAt.Equal(pj.LastScoredAt) {
			return pi.LastScoredAt.Before(pj.LastScoredAt)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// bucketsFor maps a submission to its distribution counter buckets.
func bucketsFor(record domain.AnswerRecord) []string {
	if record.TimedOut {
		return []string{"timeout"}
	}
	ans := record.Answer
	switch {
	case ans.OptionIndex != nil:
		return []string{strconv.Itoa(*ans.OptionIndex)}
	case len(ans.OptionIndices) > 0:
		buckets := make([]string, 0, len(ans.OptionIndices))
		for _, idx := range ans.OptionIndices {
			buckets = append(buckets, strconv.Itoa(idx))
		}
		return buckets
	case ans.Value != nil:
		if record.IsCorrect {
			return []string{"correct"}
		}
		return []string{"incorrect"}
	case ans.Text != "":
		if record.IsCorrect {
			return []string{"correct"}
		}
		return []string{"incorrect"}
	default:
		return []string{"viewed"}
	}
}

func copyCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}
