package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
)

// HostHandler serves the host control connection: it creates or reattaches
// to a game and turns inbound commands into game state transitions.
type HostHandler struct {
	service  *app.GameService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHostHandler(service *app.GameService, log zerolog.Logger) *HostHandler {
	return &HostHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type createdPayload struct {
	Game gameStateView `json:"game"`
}

// ServeWS runs the host connection loop. Pass quizId to create a game or
// pin to reattach to a running one.
func (h *HostHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	pin := r.URL.Query().Get("pin")
	if quizID == "" && pin == "" {
		http.Error(w, "missing quizId or pin", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	reattached := pin != ""
	if pin == "" {
		game, err := h.service.CreateGame(ctx, quizID)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Fatal: true}})
			return
		}
		pin = game.PIN
	} else if _, err := h.service.Game(ctx, pin); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Fatal: true}})
		return
	}

	game, err := h.service.Game(ctx, pin)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Fatal: true}})
		return
	}

	updates, cancelUpdates, err := h.service.Subscribe(ctx, pin)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Fatal: true}})
		return
	}
	defer cancelUpdates()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("pin", pin).Msg("host ws write error")
				return
			}
		}
	}()

	updatesDone := make(chan struct{})
	closeSignals := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "gameState", Payload: newGameStateView(update.Game)}:
				case <-closeSignals:
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update.Leaderboard}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "created", Payload: createdPayload{Game: newGameStateView(game)}}

	if reattached {
		// A reattaching host gets the stored aggregate up front; in-process
		// broadcasts only cover what happens after the reattach.
		if lb, err := h.service.LeaderboardView(ctx, pin); err == nil {
			send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}
		} else {
			h.log.Debug().Err(err).Str("pin", pin).Msg("leaderboard read on reattach failed")
		}
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if err := h.handleCommand(ctx, pin, msg.Type); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handleCommand maps host commands onto the game state machine. The
// question → leaderboard edge ("results") is optimistic: the recompute runs
// asynchronously and its failure only surfaces as a soft indicator.
func (h *HostHandler) handleCommand(ctx context.Context, pin, command string) error {
	switch command {
	case "start":
		return h.service.StartGame(ctx, pin)
	case "show":
		return h.service.ShowQuestion(ctx, pin)
	case "results":
		return h.service.ShowResults(ctx, pin)
	case "next":
		return h.service.NextQuestion(ctx, pin)
	case "end":
		return h.service.EndGame(ctx, pin)
	case "cancel":
		return h.service.CancelGame(ctx, pin)
	case "recompute":
		// Manual retry after a "failed to compute accurate results" soft error.
		game, err := h.service.Game(ctx, pin)
		if err != nil {
			return err
		}
		_, err = h.service.ComputeQuestionResults(ctx, pin, game.QuestionIndex)
		return err
	default:
		return errors.New("unsupported host command")
	}
}
