package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Victorpalkin/quizliveapp-sub005/internal/app"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/config"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/domain"
	"github.com/Victorpalkin/quizliveapp-sub005/internal/infra/memory"
	pgloader "github.com/Victorpalkin/quizliveapp-sub005/internal/infra/postgres"
	infraredis "github.com/Victorpalkin/quizliveapp-sub005/internal/infra/redis"
	transport "github.com/Victorpalkin/quizliveapp-sub005/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var aggregates app.AggregateStore
	if redisClient != nil {
		aggregates = infraredis.NewAggregateStore(redisClient, redisTTL)
	} else {
		aggregates = memory.NewAggregateStore()
	}

	games := memory.NewGameStore()
	service := app.NewGameService(games, quizRepo, aggregates,
		app.WithLogger(log),
		app.WithMaxPlayers(cfg.Game.MaxPlayers),
	)

	playerWS := transport.NewPlayerHandler(service, log)
	hostWS := transport.NewHostHandler(service, log)
	api := transport.NewAPI(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", transport.Healthz)
	mux.HandleFunc("/ws/play", playerWS.ServeWS)
	mux.HandleFunc("/ws/host", hostWS.ServeWS)
	mux.HandleFunc("/games", api.CreateGame)
	mux.HandleFunc("/games/state", api.GetGame)
	mux.HandleFunc("/games/leaderboard", api.GetLeaderboard)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// sampleQuizzes seeds a demo quiz for runs without Postgres configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:    "demo",
			Title: "Demo quiz",
			Questions: []domain.Question{
				{
					ID:               "q1",
					Prompt:           "Welcome! Warm up your thumbs.",
					TimeLimitSeconds: 0,
					Variant:          domain.Slide{Body: "First question coming up."},
				},
				{
					ID:               "q2",
					Prompt:           "What is 2 + 2?",
					TimeLimitSeconds: 20,
					Variant: domain.SingleChoice{
						Options:      []string{"3", "4", "5"},
						CorrectIndex: 1,
					},
				},
				{
					ID:               "q3",
					Prompt:           "Which of these are prime?",
					TimeLimitSeconds: 20,
					Variant: domain.MultipleChoice{
						Options:        []string{"2", "4", "7", "9"},
						CorrectIndices: []int{0, 2},
					},
				},
				{
					ID:               "q4",
					Prompt:           "Guess the boiling point of water at sea level (°C)",
					TimeLimitSeconds: 30,
					Variant:          domain.Slider{Min: 0, Max: 200, CorrectValue: 100},
				},
			},
		},
	}
}
