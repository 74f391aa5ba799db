package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/astrolink/consult-rtc/internal/api/http"
	"github.com/astrolink/consult-rtc/internal/config"
	"github.com/astrolink/consult-rtc/internal/repository"
	"github.com/astrolink/consult-rtc/internal/repository/model"
	"github.com/astrolink/consult-rtc/internal/service"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
	"github.com/astrolink/consult-rtc/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	consultationRepo, sessionRepo, chatRepo, userRepo := setupRepositories(cfg, log)
	presence := setupPresence(cfg, log)

	userService := service.NewUserService(userRepo, log)
	sessionService := service.NewSessionService(consultationRepo, sessionRepo, chatRepo, presence, log)
	relayService := service.NewRelayService(consultationRepo, sessionRepo, chatRepo, presence, log)

	authController := httpapi.NewAuthController(userService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
	userController := httpapi.NewUserController(userService, log)
	sessionController := httpapi.NewSessionController(sessionService, log)
	signalController := httpapi.NewSignalController(relayService, log)

	router := httpapi.SetupRouter(
		cfg.HTTP.AllowedOrigins,
		cfg.Auth.JWTSecret,
		authController,
		userController,
		sessionController,
		signalController,
	)

	log.Info("starting relay", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupRepositories wires postgres when a DSN is configured and falls back to
// in-memory stores for local runs.
func setupRepositories(cfg *config.Config, log *slog.Logger) (
	repository.ConsultationRepository,
	repository.LiveSessionRepository,
	repository.ChatRepository,
	repository.UserRepository,
) {
	if cfg.Database.DSN == "" {
		log.Warn("database dsn is empty, using in-memory repositories")
		return repository.NewInMemoryConsultationRepository(),
			repository.NewInMemoryLiveSessionRepository(),
			repository.NewInMemoryChatRepository(),
			repository.NewInMemoryUserRepository()
	}

	db, err := connectDatabase(cfg.Database.DSN)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	return repository.NewPostgresConsultationRepository(db),
		repository.NewPostgresLiveSessionRepository(db),
		repository.NewPostgresChatRepository(db),
		repository.NewPostgresUserRepository(db)
}

func setupPresence(cfg *config.Config, log *slog.Logger) repository.PresenceStore {
	if cfg.Redis.Address == "" {
		log.Warn("redis address is empty, using in-memory presence store")
		return repository.NewInMemoryPresenceStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return repository.NewRedisPresenceStore(client)
}

func connectDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.Consultation{}, &model.LiveSession{}, &model.ChatMessage{}, &model.User{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
