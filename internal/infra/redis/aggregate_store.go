package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// AggregateStore keeps the leaderboard aggregate in Redis. The live path is
// built entirely on HINCRBY/INCR/ZINCRBY so any interleaving of concurrent
// submissions sums correctly; the recompute path overwrites one snapshot
// document. Nothing here ever does a read-modify-write from client memory.
type AggregateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAggregateStore(client *redis.Client, ttl time.Duration) *AggregateStore {
	return &AggregateStore{client: client, ttl: ttl}
}

func (s *AggregateStore) countsKey(pin string, questionIndex int) string {
	return "game:" + pin + ":q:" + strconv.Itoa(questionIndex) + ":counts"
}

func (s *AggregateStore) answeredKey(pin string, questionIndex int) string {
	return "game:" + pin + ":q:" + strconv.Itoa(questionIndex) + ":answered"
}

func (s *AggregateStore) scoresKey(pin string) string   { return "game:" + pin + ":scores" }
func (s *AggregateStore) namesKey(pin string) string    { return "game:" + pin + ":names" }
func (s *AggregateStore) snapshotKey(pin string) string { return "game:" + pin + ":snapshot" }

// RecordAnswer bumps the answered total and each bucket counter in one
// pipeline round-trip.
func (s *AggregateStore) RecordAnswer(ctx context.Context, pin string, questionIndex int, buckets []string) error {
	countsKey := s.countsKey(pin, questionIndex)
	answeredKey := s.answeredKey(pin, questionIndex)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, answeredKey)
	for _, bucket := range buckets {
		pipe.HIncrBy(ctx, countsKey, bucket, 1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, answeredKey, s.ttl)
		pipe.Expire(ctx, countsKey, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// AddScore adds points to the ranked sorted set and remembers the name for
// snapshot reads.
func (s *AggregateStore) AddScore(ctx context.Context, pin, playerID, displayName string, delta int) error {
	pipe := s.client.Pipeline()
	pipe.ZIncrBy(ctx, s.scoresKey(pin), float64(delta), playerID)
	pipe.HSet(ctx, s.namesKey(pin), playerID, displayName)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.scoresKey(pin), s.ttl)
		pipe.Expire(ctx, s.namesKey(pin), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("add score: %w", err)
	}
	return nil
}

// TopN reads the bounded ranked list, never the full player set.
func (s *AggregateStore) TopN(ctx context.Context, pin string, n int) ([]domain.LeaderboardEntry, error) {
	ranked, err := s.client.ZRevRangeWithScores(ctx, s.scoresKey(pin), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top-n read: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	ids := make([]string, len(ranked))
	for i, z := range ranked {
		ids[i], _ = z.Member.(string)
	}
	names, err := s.client.HMGet(ctx, s.namesKey(pin), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("names read: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, len(ranked))
	for i, z := range ranked {
		name := ""
		if i < len(names) {
			if s, ok := names[i].(string); ok {
				name = s
			}
		}
		entries[i] = domain.LeaderboardEntry{
			PlayerID:    ids[i],
			DisplayName: name,
			Score:       int(z.Score),
			Rank:        i + 1,
		}
	}
	return entries, nil
}

// LiveCounts returns the answered total and bucket distribution for one
// question.
func (s *AggregateStore) LiveCounts(ctx context.Context, pin string, questionIndex int) (int, map[string]int, error) {
	total, err := s.client.Get(ctx, s.answeredKey(pin, questionIndex)).Int()
	if err == redis.Nil {
		total = 0
	} else if err != nil {
		return 0, nil, fmt.Errorf("answered read: %w", err)
	}

	raw, err := s.client.HGetAll(ctx, s.countsKey(pin, questionIndex)).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("counts read: %w", err)
	}
	counts := make(map[string]int, len(raw))
	for bucket, value := range raw {
		if n, err := strconv.Atoi(value); err == nil {
			counts[bucket] = n
		}
	}
	return total, counts, nil
}

// WriteSnapshot replaces the finalized aggregate document.
func (s *AggregateStore) WriteSnapshot(ctx context.Context, snap domain.Leaderboard) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.snapshotKey(snap.GamePIN), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot returns the finalized document if a recompute has written one.
func (s *AggregateStore) ReadSnapshot(ctx context.Context, pin string) (domain.Leaderboard, bool, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(pin)).Bytes()
	if err == redis.Nil {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap domain.Leaderboard
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// ResetQuestion deletes the live counters for a question. Deleting keys that
// were never written is a no-op, which covers the first answer of a game.
func (s *AggregateStore) ResetQuestion(ctx context.Context, pin string, questionIndex int) error {
	err := s.client.Del(ctx, s.countsKey(pin, questionIndex), s.answeredKey(pin, questionIndex)).Err()
	if err != nil {
		return fmt.Errorf("reset question: %w", err)
	}
	return nil
}

// Clear drops every aggregate key for a game.
func (s *AggregateStore) Clear(ctx context.Context, pin string) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, "game:"+pin+":*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan game keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear game keys: %w", err)
	}
	return nil
}
