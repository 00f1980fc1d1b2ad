package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// AggregateStore is an in-memory implementation of app.AggregateStore for
// tests and single-node runs. It mirrors the Redis semantics: every live
// mutation is a pure addition under the lock, so concurrent submissions
// accumulate without lost updates, and the recompute path replaces the
// snapshot wholesale.
type AggregateStore struct {
	mu    sync.Mutex
	games map[string]*gameAggregate
}

type gameAggregate struct {
	// counts[questionIndex][bucket] and answered[questionIndex] are the live
	// counters; scores/names back the ranked list.
	counts   map[int]map[string]int
	answered map[int]int
	scores   map[string]int
	names    map[string]string
	snapshot *domain.Leaderboard
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{games: make(map[string]*gameAggregate)}
}

func (s *AggregateStore) game(pin string) *gameAggregate {
	agg, ok := s.games[pin]
	if !ok {
		agg = &gameAggregate{
			counts:   make(map[int]map[string]int),
			answered: make(map[int]int),
			scores:   make(map[string]int),
			names:    make(map[string]string),
		}
		s.games[pin] = agg
	}
	return agg
}

func (s *AggregateStore) RecordAnswer(_ context.Context, pin string, questionIndex int, buckets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := s.game(pin)
	agg.answered[questionIndex]++
	byBucket, ok := agg.counts[questionIndex]
	if !ok {
		byBucket = make(map[string]int)
		agg.counts[questionIndex] = byBucket
	}
	for _, bucket := range buckets {
		byBucket[bucket]++
	}
	return nil
}

func (s *AggregateStore) AddScore(_ context.Context, pin, playerID, displayName string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := s.game(pin)
	agg.scores[playerID] += delta
	agg.names[playerID] = displayName
	return nil
}

func (s *AggregateStore) TopN(_ context.Context, pin string, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.games[pin]
	if !ok {
		return nil, nil
	}
	entries := make([]domain.LeaderboardEntry, 0, len(agg.scores))
	for playerID, score := range agg.scores {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:    playerID,
			DisplayName: agg.names[playerID],
			Score:       score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *AggregateStore) LiveCounts(_ context.Context, pin string, questionIndex int) (int, map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.games[pin]
	if !ok {
		return 0, nil, nil
	}
	counts := make(map[string]int, len(agg.counts[questionIndex]))
	for bucket, count := range agg.counts[questionIndex] {
		counts[bucket] = count
	}
	return agg.answered[questionIndex], counts, nil
}

func (s *AggregateStore) WriteSnapshot(_ context.Context, snap domain.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	s.game(snap.GamePIN).snapshot = &snap
	return nil
}

func (s *AggregateStore) ReadSnapshot(_ context.Context, pin string) (domain.Leaderboard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.games[pin]
	if !ok || agg.snapshot == nil {
		return domain.Leaderboard{}, false, nil
	}
	return *agg.snapshot, true, nil
}

func (s *AggregateStore) ResetQuestion(_ context.Context, pin string, questionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.games[pin]
	if !ok {
		// Nothing to reset before the first answer of a game.
		return nil
	}
	delete(agg.counts, questionIndex)
	delete(agg.answered, questionIndex)
	return nil
}

func (s *AggregateStore) Clear(_ context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, pin)
	return nil
}
