package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmchat/backend/internal/api/handler"
	"crmchat/backend/internal/chathub"
	"crmchat/backend/internal/config"
	"crmchat/backend/internal/localization"
	"crmchat/backend/internal/logging"
	"crmchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config, logger *zap.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		// Presence is per process; entries from a previous run are stale.
		if err := rdb.Del(ctx, config.OnlineSetKey).Err(); err != nil {
			return nil, nil, err
		}
	} else {
		logger.Info("REDIS_ADDR not set, presence mirror disabled")
	}

	logger.Info("database ready", zap.String("driver", cfg.DatabaseDriver), zap.Bool("redis", rdb != nil))
	return db, rdb, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, rdb, err := setupDependencies(cfg, logger)
	if err != nil {
		logger.Fatal("dependencies", zap.Error(err))
	}
	s := storage.NewStorageService(db, rdb)

	hub, err := chathub.NewManagerService(s, cfg.UploadDir, logger.Named("hub"))
	if err != nil {
		logger.Fatal("chat hub", zap.Error(err))
	}

	if cfg.LocaleDir != "" {
		texts, err := localization.NewLocalizer(cfg.LocaleDir)
		if err != nil {
			logger.Fatal("locales", zap.Error(err))
		}
		hub.Texts = texts
	}
	if !hub.Texts.HasLanguage(cfg.Locale) {
		logger.Warn("no catalog for locale, falling back", zap.String("locale", cfg.Locale))
	}
	hub.Lang = cfg.Locale

	h := handler.NewHandler(hub, s, cfg, logger.Named("http"))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		logger.Warn("hub shutdown", zap.Error(err))
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("stopped")
}
