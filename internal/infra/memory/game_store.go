package memory

import (
	"sync"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
)

// GameStore is an in-memory implementation of app.GameRepository.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*app.GameSession
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*app.GameSession),
	}
}

// Put registers a session under its PIN; it reports false on collision.
func (s *GameStore) Put(session *app.GameSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pin := session.PIN()
	if _, exists := s.games[pin]; exists {
		return false
	}
	s.games[pin] = session
	return true
}

func (s *GameStore) Get(pin string) (*app.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.games[pin]
	return session, ok
}

func (s *GameStore) Delete(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, pin)
}
