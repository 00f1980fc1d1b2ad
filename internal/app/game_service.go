package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/scoring"
)

// GameRepository abstracts how live game sessions are stored (in-memory map,
// Redis-marked, etc).
type GameRepository interface {
	Put(session *GameSession) bool
	Get(pin string) (*GameSession, bool)
	Delete(pin string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AggregateStore maintains the shared leaderboard aggregate. The live path
// only ever uses commutative increments; the recompute path overwrites the
// whole document. Client read-modify-write never happens.
type AggregateStore interface {
	// RecordAnswer atomically bumps the answered total and each bucket counter.
	RecordAnswer(ctx context.Context, pin string, questionIndex int, buckets []string) error
	// AddScore atomically adds points to a player's ranked score.
	AddScore(ctx context.Context, pin, playerID, displayName string, delta int) error
	// TopN reads the bounded ranked list.
	TopN(ctx context.Context, pin string, n int) ([]domain.LeaderboardEntry, error)
	// LiveCounts reads the live distribution for one question.
	LiveCounts(ctx context.Context, pin string, questionIndex int) (int, map[string]int, error)
	// WriteSnapshot overwrites the finalized aggregate document.
	WriteSnapshot(ctx context.Context, snap domain.Leaderboard) error
	// ReadSnapshot returns the finalized document, if one was written.
	ReadSnapshot(ctx context.Context, pin string) (domain.Leaderboard, bool, error)
	// ResetQuestion clears live counters for a question index. A missing
	// document is a no-op, not an error.
	ResetQuestion(ctx context.Context, pin string, questionIndex int) error
	// Clear drops all aggregate state for a game.
	Clear(ctx context.Context, pin string) error
}

// GameService contains the live-game use cases: hosting, joining, answering,
// and the results recompute.
type GameService struct {
	games      GameRepository
	quizzes    QuizRepository
	aggregates AggregateStore
	log        zerolog.Logger
	maxPlayers int

	pinMu sync.Mutex
	rnd   *rand.Rand
}

// Option configures a GameService.
type Option func(*GameService)

// WithLogger attaches a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *GameService) { s.log = log }
}

// WithMaxPlayers caps how many players can join one game. Zero means no cap.
func WithMaxPlayers(n int) Option {
	return func(s *GameService) { s.maxPlayers = n }
}

func NewGameService(games GameRepository, quizzes QuizRepository, aggregates AggregateStore, opts ...Option) *GameService {
	s := &GameService{
		games:      games,
		quizzes:    quizzes,
		aggregates: aggregates,
		log:        zerolog.Nop(),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGame allocates a PIN and opens a lobby for the given quiz.
func (s *GameService) CreateGame(ctx context.Context, quizID string) (domain.Game, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Game{}, err
	}

	for attempt := 0; attempt < 100; attempt++ {
		session := newGameSession(domain.Game{
			PIN:    s.newPIN(),
			QuizID: quizID,
			State:  domain.StateLobby,
		})
		if s.games.Put(session) {
			game := session.Game()
			s.log.Info().Str("pin", game.PIN).Str("quiz", quizID).Msg("game created")
			return game, nil
		}
	}
	return domain.Game{}, domain.ErrNoAvailablePIN
}

// newPIN returns a 6-digit join code.
func (s *GameService) newPIN() string {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	const digits = "0123456789"
	pin := make([]byte, 6)
	for i := range pin {
		pin[i] = digits[s.rnd.Intn(len(digits))]
	}
	return string(pin)
}

// Join registers or refreshes a player in a game.
func (s *GameService) Join(ctx context.Context, pin, playerID, displayName string) (Update, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return Update{}, domain.ErrGameNotFound
	}
	return session.join(playerID, displayName, s.maxPlayers)
}

// Leave handles a closed player connection. Mid-game the player record is
// kept for reconnection; only lobby departures remove it, and an emptied
// lobby is dropped.
func (s *GameService) Leave(_ context.Context, pin, playerID string) {
	session, ok := s.games.Get(pin)
	if !ok {
		return
	}
	session.leave(playerID)
	if session.IsEmpty() && session.Game().State == domain.StateLobby {
		s.games.Delete(pin)
	}
}

// Game returns the current game document.
func (s *GameService) Game(_ context.Context, pin string) (domain.Game, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return session.Game(), nil
}

// PlayerView returns a copy of one player's record.
func (s *GameService) PlayerView(_ context.Context, pin, playerID string) (domain.Player, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.Player{}, domain.ErrGameNotFound
	}
	player, ok := session.player(playerID)
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

// CurrentQuestion returns the question the game is positioned at.
func (s *GameService) CurrentQuestion(ctx context.Context, pin string) (domain.Question, int, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.Question{}, 0, domain.ErrGameNotFound
	}
	game := session.Game()
	quiz, err := s.quizzes.GetQuiz(ctx, game.QuizID)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if game.QuestionIndex < 0 || game.QuestionIndex >= len(quiz.Questions) {
		return domain.Question{}, 0, domain.ErrQuestionNotFound
	}
	return quiz.Questions[game.QuestionIndex], game.QuestionIndex, nil
}

// Subscribe returns a channel receiving game/leaderboard updates for a game.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, pin string) (<-chan Update, func(), error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return nil, nil, domain.ErrGameNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// LeaderboardView reads the leaderboard from the aggregate store: the
// finalized snapshot when one covers the current question, the live counters
// and ranked set otherwise. This is the bounded O(1) read other instances and
// reattaching hosts use instead of the in-process session state.
func (s *GameService) LeaderboardView(ctx context.Context, pin string) (domain.Leaderboard, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.Leaderboard{}, domain.ErrGameNotFound
	}
	game := session.Game()

	snap, found, err := s.aggregates.ReadSnapshot(ctx, pin)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if found && snap.QuestionIndex == game.QuestionIndex {
		return snap, nil
	}

	answered, counts, err := s.aggregates.LiveCounts(ctx, pin, game.QuestionIndex)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries, err := s.aggregates.TopN(ctx, pin, TopN)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		GamePIN:       pin,
		QuestionIndex: game.QuestionIndex,
		Entries:       entries,
		PlayerCount:   session.PlayerCount(),
		AnsweredCount: answered,
		Counts:        counts,
		UpdatedAt:     time.Now(),
	}, nil
}

// SubmitAnswer scores a submission and updates both the player record and the
// live aggregate counters. The reported remaining time is capped at what the
// server-side question clock allows, so a client cannot claim extra bonus.
func (s *GameService) SubmitAnswer(ctx context.Context, pin, playerID string, questionIndex int, ans domain.Answer, timedOut bool, remainingSeconds float64) (domain.SubmitResult, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.SubmitResult{}, domain.ErrGameNotFound
	}
	game := session.Game()
	quiz, err := s.quizzes.GetQuiz(ctx, game.QuizID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return domain.SubmitResult{}, domain.ErrQuestionNotFound
	}
	question := quiz.Questions[questionIndex]

	timing := scoring.Timing{
		RemainingSeconds: capRemaining(remainingSeconds, question, game, time.Now()),
		LimitSeconds:     float64(question.TimeLimitSeconds),
	}
	if timedOut {
		// A timeout carries no selection.
		ans = domain.Answer{}
	}
	scored := scoring.Score(question, ans, timedOut, timing)

	record := domain.AnswerRecord{
		Answer:             ans,
		IsCorrect:          scored.IsCorrect,
		IsPartiallyCorrect: scored.IsPartiallyCorrect,
		Points:             scored.Points,
		TimedOut:           timedOut,
	}
	result, _, err := session.applyAnswer(playerID, questionIndex, record)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	// Live aggregate path: commutative increments only, so retries and
	// out-of-order arrivals still sum correctly. Failures here are soft;
	// the player records remain the source of truth.
	if err := s.aggregates.RecordAnswer(ctx, pin, questionIndex, bucketsFor(record)); err != nil {
		s.log.Warn().Err(err).Str("pin", pin).Int("question", questionIndex).Msg("aggregate increment failed")
	}
	if record.Points > 0 {
		player, _ := session.player(playerID)
		if err := s.aggregates.AddScore(ctx, pin, playerID, player.DisplayName, record.Points); err != nil {
			s.log.Warn().Err(err).Str("pin", pin).Str("player", playerID).Msg("aggregate score update failed")
		}
	}
	return result, nil
}

// capRemaining clamps the client-reported remaining time to the server-side
// question clock.
func capRemaining(reported float64, question domain.Question, game domain.Game, now time.Time) float64 {
	if reported < 0 {
		reported = 0
	}
	limit := float64(question.TimeLimitSeconds)
	if reported > limit {
		reported = limit
	}
	if game.QuestionStartedAt.IsZero() {
		return reported
	}
	elapsed := now.Sub(game.QuestionStartedAt).Seconds()
	serverRemaining := limit - elapsed
	if serverRemaining < 0 {
		serverRemaining = 0
	}
	if reported > serverRemaining {
		return serverRemaining
	}
	return reported
}

// ComputeQuestionResults rebuilds the authoritative aggregate for a question
// from the player answer records and overwrites the live-incremented
// counters. Idempotent: with no new submissions, a second run produces the
// same document.
func (s *GameService) ComputeQuestionResults(ctx context.Context, pin string, questionIndex int) (domain.Leaderboard, error) {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.Leaderboard{}, domain.ErrGameNotFound
	}
	snap := session.buildSnapshot(questionIndex)
	if err := s.aggregates.WriteSnapshot(ctx, snap); err != nil {
		return domain.Leaderboard{}, err
	}
	session.setFinalSnapshot(snap)
	return snap, nil
}

// StartGame moves a lobby into the preparing state for the first question.
func (s *GameService) StartGame(_ context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	_, err := session.transition(domain.StatePreparing, func(game *domain.Game) {
		game.QuestionIndex = 0
	})
	return err
}

// ShowQuestion opens the answer window: the question clock starts now.
func (s *GameService) ShowQuestion(_ context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	_, err := session.transition(domain.StateQuestion, func(game *domain.Game) {
		game.QuestionStartedAt = time.Now()
	})
	return err
}

// ShowResults closes the question optimistically and kicks off the
// authoritative recompute in the background. A failed recompute never blocks
// the transition; clients keep the live counters until a retry lands.
func (s *GameService) ShowResults(ctx context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	game := session.Game()
	if _, err := session.transition(domain.StateLeaderboard, nil); err != nil {
		return err
	}
	go func() {
		recomputeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.ComputeQuestionResults(recomputeCtx, pin, game.QuestionIndex); err != nil {
			s.log.Warn().Err(err).Str("pin", pin).Int("question", game.QuestionIndex).
				Msg("failed to compute accurate results")
		}
	}()
	return nil
}

// NextQuestion advances to the next question. Transient per-question state
// and the live counters are cleared before the index moves, so a late answer
// to the old question cannot corrupt the new question's counters.
func (s *GameService) NextQuestion(ctx context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	game := session.Game()
	quiz, err := s.quizzes.GetQuiz(ctx, game.QuizID)
	if err != nil {
		return err
	}
	if game.QuestionIndex+1 >= len(quiz.Questions) {
		return domain.ErrQuestionNotFound
	}

	session.resetQuestionTransients()
	if err := s.aggregates.ResetQuestion(ctx, pin, game.QuestionIndex); err != nil {
		s.log.Warn().Err(err).Str("pin", pin).Msg("aggregate reset failed")
	}
	_, err = session.transition(domain.StatePreparing, func(g *domain.Game) {
		g.QuestionIndex++
		g.QuestionStartedAt = time.Time{}
	})
	return err
}

// EndGame runs a final recompute to capture last-second submissions, then
// marks the game ended. A failed recompute is logged and does not block the
// terminal state.
func (s *GameService) EndGame(ctx context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	game := session.Game()
	if _, err := s.ComputeQuestionResults(ctx, pin, game.QuestionIndex); err != nil {
		s.log.Warn().Err(err).Str("pin", pin).Msg("final recompute failed; ending anyway")
	}
	_, err := session.transition(domain.StateEnded, nil)
	return err
}

// CancelGame terminates the game from any non-terminal state.
func (s *GameService) CancelGame(ctx context.Context, pin string) error {
	session, ok := s.games.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	if _, err := session.transition(domain.StateCanceled, nil); err != nil {
		return err
	}
	if err := s.aggregates.Clear(ctx, pin); err != nil {
		s.log.Warn().Err(err).Str("pin", pin).Msg("aggregate cleanup failed")
	}
	return nil
}
