package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// API bundles the plain-HTTP endpoints next to the websocket handlers.
type API struct {
	service *app.GameService
	log     zerolog.Logger
}

func NewAPI(service *app.GameService, log zerolog.Logger) *API {
	return &API{service: service, log: log}
}

type createGameRequest struct {
	QuizID string `json:"quizId"`
}

type createGameResponse struct {
	PIN string `json:"pin"`
}

// CreateGame handles POST /games: allocate a PIN for a quiz.
func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	game, err := a.service.CreateGame(r.Context(), req.QuizID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrQuizNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createGameResponse{PIN: game.PIN})
}

// GetGame handles GET /games/state?pin=: the current game document.
func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if pin == "" {
		http.Error(w, "missing pin", http.StatusBadRequest)
		return
	}
	game, err := a.service.Game(r.Context(), pin)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(newGameStateView(game))
}

// GetLeaderboard handles GET /games/leaderboard?pin=: the bounded aggregate
// read from the store (finalized snapshot or live counters).
func (a *API) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if pin == "" {
		http.Error(w, "missing pin", http.StatusBadRequest)
		return
	}
	lb, err := a.service.LeaderboardView(r.Context(), pin)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrGameNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lb)
}

// Healthz is the liveness endpoint.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}
