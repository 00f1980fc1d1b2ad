package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
)

// PlayerHandler upgrades player connections and drives one PlayerMachine per
// connection.
type PlayerHandler struct {
	service  *app.GameService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewPlayerHandler(service *app.GameService, log zerolog.Logger) *PlayerHandler {
	return &PlayerHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex    int           `json:"questionIndex"`
	Answer           domain.Answer `json:"answer"`
	RemainingSeconds float64       `json:"remainingSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	// Fatal distinguishes "give up" errors from soft indicators the player
	// can keep playing through.
	Fatal bool `json:"fatal,omitempty"`
}

type joinedPayload struct {
	PlayerID string        `json:"playerId"`
	Game     gameStateView `json:"game"`
}

// ServeWS joins a player into a game and runs the connection loop. The
// player machine is only ever touched from this loop.
func (h *PlayerHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	displayName := r.URL.Query().Get("name")
	playerID := r.URL.Query().Get("playerId")
	if pin == "" || displayName == "" {
		http.Error(w, "missing pin or name", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	joined, err := h.service.Join(ctx, pin, playerID, displayName)
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
	defer h.service.Leave(ctx, pin, playerID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("pin", pin).Msg("ws write error")
				return
			}
		}
	}()

	inbound := make(chan inboundMessage)
	go func() {
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			inbound <- msg
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{PlayerID: playerID, Game: newGameStateView(joined.Game)}}

	loop := &playerLoop{
		handler:  h,
		pin:      pin,
		playerID: playerID,
		machine:  app.NewPlayerMachine(),
		send:     send,
		timer:    time.NewTimer(time.Hour),
	}
	loop.stopTimer()
	defer loop.timer.Stop()

	loop.applyUpdate(ctx, joined)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				h.finish(send, writerDone)
				return
			}
			loop.applyUpdate(ctx, update)
		case msg, ok := <-inbound:
			if !ok {
				h.finish(send, writerDone)
				return
			}
			loop.handleInbound(ctx, msg)
		case <-loop.timer.C:
			loop.applyEffects(ctx, loop.machine.TimerExpired())
		}
	}
}

func (h *PlayerHandler) finish(send chan outboundMessage[any], writerDone chan struct{}) {
	close(send)
	<-writerDone
}

// playerLoop owns the per-connection state machine and countdown timer.
type playerLoop struct {
	handler  *PlayerHandler
	pin      string
	playerID string
	machine  *app.PlayerMachine
	send     chan outboundMessage[any]
	timer    *time.Timer
	question questionView
}

func (l *playerLoop) applyUpdate(ctx context.Context, update app.Update) {
	effects := l.machine.ObserveGame(update.Game.State, update.Game.QuestionIndex)
	l.send <- outboundMessage[any]{Type: "gameState", Payload: newGameStateView(update.Game)}
	l.send <- outboundMessage[any]{Type: "leaderboard", Payload: update.Leaderboard}
	l.applyEffects(ctx, effects)
}

func (l *playerLoop) applyEffects(ctx context.Context, effects []app.Effect) {
	for _, effect := range effects {
		switch effect {
		case app.EffectStartTimer:
			l.startQuestion(ctx)
		case app.EffectStopTimer:
			l.stopTimer()
		case app.EffectSubmitTimeout:
			l.submitTimeout(ctx)
		case app.EffectShowResult:
			l.showResult(ctx)
		}
	}
}

func (l *playerLoop) startQuestion(ctx context.Context) {
	question, index, err := l.handler.service.CurrentQuestion(ctx, l.pin)
	if err != nil {
		l.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	l.question = newQuestionView(question, index)
	l.send <- outboundMessage[any]{Type: "question", Payload: l.question}

	l.stopTimer()
	if question.TimeLimitSeconds > 0 {
		l.timer.Reset(time.Duration(question.TimeLimitSeconds) * time.Second)
	}
}

// stopTimer halts the countdown and drains a tick that already fired, so a
// later Reset cannot deliver a stale expiry as a timeout for the next
// question.
func (l *playerLoop) stopTimer() {
	if !l.timer.Stop() {
		select {
		case <-l.timer.C:
		default:
		}
	}
}

func (l *playerLoop) handleInbound(ctx context.Context, msg inboundMessage) {
	switch msg.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			l.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
			return
		}
		// Guard before any network call: the flag is flipped synchronously.
		if !l.machine.Submit() {
			l.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "already answered"}}
			return
		}
		l.stopTimer()
		result, err := l.handler.service.SubmitAnswer(ctx, l.pin, l.playerID, payload.QuestionIndex, payload.Answer, false, payload.RemainingSeconds)
		if err != nil {
			l.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			return
		}
		l.send <- outboundMessage[any]{Type: "answerResult", Payload: resultView{
			QuestionIndex:      payload.QuestionIndex,
			Points:             result.Points,
			TotalScore:         result.NewScore,
			Streak:             result.Streak,
			IsCorrect:          result.IsCorrect,
			IsPartiallyCorrect: result.IsPartiallyCorrect,
		}}
	default:
		l.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}

// submitTimeout records a no-selection timeout. Duplicate or late timeouts
// land on the server's idempotency errors and are silently dropped.
func (l *playerLoop) submitTimeout(ctx context.Context) {
	_, err := l.handler.service.SubmitAnswer(ctx, l.pin, l.playerID, l.machine.QuestionIndex(), domain.Answer{}, true, 0)
	if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) && !errors.Is(err, domain.ErrQuestionClosed) {
		l.handler.log.Debug().Err(err).Str("pin", l.pin).Msg("timeout submission failed")
	}
}

func (l *playerLoop) showResult(ctx context.Context) {
	view := resultView{
		QuestionIndex: l.machine.QuestionIndex(),
		NoAnswer:      l.machine.TimedOut(),
	}
	if record, total, ok := l.playerRecord(ctx); ok {
		view.Points = record.Points
		view.IsCorrect = record.IsCorrect
		view.IsPartiallyCorrect = record.IsPartiallyCorrect
		view.NoAnswer = record.TimedOut
		view.TotalScore = total
	}
	l.send <- outboundMessage[any]{Type: "result", Payload: view}
}

func (l *playerLoop) playerRecord(ctx context.Context) (domain.AnswerRecord, int, bool) {
	player, err := l.handler.service.PlayerView(ctx, l.pin, l.playerID)
	if err != nil {
		return domain.AnswerRecord{}, 0, false
	}
	record, ok := player.AnswerFor(l.machine.QuestionIndex())
	return record, player.Score, ok
}
