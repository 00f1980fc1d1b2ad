package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

func newTestStore(t *testing.T) (*AggregateStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewAggregateStore(client, time.Minute), mr
}

func TestRecordAnswerIncrements(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.RecordAnswer(ctx, "123456", 0, []string{"1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordAnswer(ctx, "123456", 0, []string{"1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordAnswer(ctx, "123456", 0, []string{"0", "2"}); err != nil {
		t.Fatalf("record multi-bucket: %v", err)
	}

	total, counts, err := store.LiveCounts(ctx, "123456", 0)
	if err != nil {
		t.Fatalf("live counts: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 answered, got %d", total)
	}
	if counts["1"] != 2 || counts["0"] != 1 || counts["2"] != 1 {
		t.Fatalf("unexpected distribution: %v", counts)
	}
}

func TestConcurrentIncrementsAccumulate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.RecordAnswer(ctx, "777777", 2, []string{"0"}); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	total, counts, err := store.LiveCounts(ctx, "777777", 2)
	if err != nil {
		t.Fatalf("live counts: %v", err)
	}
	if total != n || counts["0"] != n {
		t.Fatalf("lost increments: total=%d counts=%v", total, counts)
	}
}

func TestTopNBoundedAndOrdered(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	players := []struct {
		id    string
		name  string
		score int
	}{
		{"p1", "Alice", 300},
		{"p2", "Bob", 900},
		{"p3", "Cleo", 600},
	}
	for _, p := range players {
		if err := store.AddScore(ctx, "123456", p.id, p.name, p.score); err != nil {
			t.Fatalf("add score: %v", err)
		}
	}

	top, err := store.TopN(ctx, "123456", 2)
	if err != nil {
		t.Fatalf("top-n: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected bounded list of 2, got %d", len(top))
	}
	if top[0].PlayerID != "p2" || top[0].Rank != 1 || top[0].DisplayName != "Bob" {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	if top[1].PlayerID != "p3" {
		t.Fatalf("unexpected runner-up: %+v", top[1])
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	snap := domain.Leaderboard{
		GamePIN:       "123456",
		QuestionIndex: 1,
		Entries: []domain.LeaderboardEntry{
			{PlayerID: "p1", DisplayName: "Alice", Score: 1000, Rank: 1},
		},
		PlayerCount:   5,
		AnsweredCount: 4,
		Counts:        map[string]int{"1": 3, "timeout": 1},
		Final:         true,
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := store.WriteSnapshot(ctx, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok, err := store.ReadSnapshot(ctx, "123456")
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if !got.Final || got.AnsweredCount != 4 || got.Counts["1"] != 3 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
}

func TestResetQuestionMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// Nothing written yet: reset must not error.
	if err := store.ResetQuestion(ctx, "000000", 0); err != nil {
		t.Fatalf("reset on missing keys: %v", err)
	}

	if err := store.RecordAnswer(ctx, "000000", 0, []string{"1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.ResetQuestion(ctx, "000000", 0); err != nil {
		t.Fatalf("reset: %v", err)
	}
	total, counts, err := store.LiveCounts(ctx, "000000", 0)
	if err != nil {
		t.Fatalf("live counts: %v", err)
	}
	if total != 0 || len(counts) != 0 {
		t.Fatalf("counters survived reset: total=%d counts=%v", total, counts)
	}
}

func TestClearRemovesAllGameKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_ = store.RecordAnswer(ctx, "424242", 0, []string{"1"})
	_ = store.AddScore(ctx, "424242", "p1", "Alice", 500)
	_ = store.WriteSnapshot(ctx, domain.Leaderboard{GamePIN: "424242"})

	if err := store.Clear(ctx, "424242"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range []string{
		"game:424242:q:0:counts",
		"game:424242:q:0:answered",
		"game:424242:scores",
		"game:424242:names",
		"game:424242:snapshot",
	} {
		if mr.Exists(key) {
			t.Fatalf("key %s survived clear", key)
		}
	}
}
