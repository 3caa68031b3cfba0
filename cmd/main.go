package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/chess-clubs/brackets"
	"github.com/Dosada05/chess-clubs/cache"
	"github.com/Dosada05/chess-clubs/config"
	"github.com/Dosada05/chess-clubs/db"
	"github.com/Dosada05/chess-clubs/handlers"
	"github.com/Dosada05/chess-clubs/repositories"
	"github.com/Dosada05/chess-clubs/routes"
	"github.com/Dosada05/chess-clubs/services"
	"github.com/Dosada05/chess-clubs/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("configuration loaded", zap.Int("port", cfg.ServerPort))

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", zap.Error(err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(ctx, dbConn); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Кэш сетки турнира опционален: без REDIS_URL сетка всегда читается из БД.
	var (
		viewCache   services.BracketViewCache
		clubCleaner services.ClubCleaner
	)
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		bracketCache := cache.NewBracketCache(redisClient, cfg.BracketCacheTTL)
		viewCache, clubCleaner = bracketCache, bracketCache
	} else {
		logger.Info("REDIS_URL not set, bracket cache disabled")
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	var uploader storage.FileUploader
	if cfg.R2 != nil {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("R2 storage not configured, club logo upload disabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger.Named("ws"))
	g.Go(func() error {
		wsHub.Run(ctx)
		return nil
	})

	// Инициализация репозиториев
	tx := repositories.NewTransactor(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	clubRepo := repositories.NewPostgresClubRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	groupingRepo := repositories.NewPostgresGroupingRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo, services.TokenConfig{
		Secret:     []byte(cfg.JWTSecretKey),
		Expiration: cfg.JWTExpiration,
	}, logger)
	clubService := services.NewClubService(tx, clubRepo, membershipRepo, tournamentRepo, uploader, clubCleaner, logger)
	tournamentService := services.NewTournamentService(services.TournamentServiceDeps{
		Tx:              tx,
		TournamentRepo:  tournamentRepo,
		MembershipRepo:  membershipRepo,
		ParticipantRepo: participantRepo,
		GroupRepo:       groupRepo,
		GroupingRepo:    groupingRepo,
		MatchRepo:       matchRepo,
		Cache:           viewCache,
		Logger:          logger,
	})
	bracketService := services.NewBracketService(services.BracketServiceDeps{
		Tx:              tx,
		TournamentRepo:  tournamentRepo,
		ParticipantRepo: participantRepo,
		GroupRepo:       groupRepo,
		GroupingRepo:    groupingRepo,
		MatchRepo:       matchRepo,
		Notifier:        wsHub,
		Cache:           viewCache,
		Logger:          logger.Named("brackets"),
	})

	// Настройка маршрутизатора
	router := routes.NewRouter(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Club:       handlers.NewClubHandler(clubService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Bracket:    handlers.NewBracketHandler(bracketService, tournamentService, logger),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger.Named("http"),
	})

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http-server")),
	}

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Ожидание сигнала завершения
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", zap.Error(closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}
