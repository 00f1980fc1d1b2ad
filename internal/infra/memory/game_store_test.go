package memory

import (
	"testing"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

func TestGameStoreLifecycle(t *testing.T) {
	store := NewGameStore()

	session := app.NewSession(domain.Game{PIN: "123456", QuizID: "quiz-1"})
	if !store.Put(session) {
		t.Fatalf("expected put to succeed")
	}
	if store.Put(app.NewSession(domain.Game{PIN: "123456"})) {
		t.Fatalf("expected PIN collision to be rejected")
	}

	got, ok := store.Get("123456")
	if !ok || got.PIN() != "123456" {
		t.Fatalf("expected session present, got ok=%v", ok)
	}

	store.Delete("123456")
	if _, ok := store.Get("123456"); ok {
		t.Fatalf("expected session removed")
	}
}
