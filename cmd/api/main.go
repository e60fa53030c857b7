package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/config"
	"github.com/shinyyama/unimarket-backend/internal/db"
	"github.com/shinyyama/unimarket-backend/internal/events"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	appmw "github.com/shinyyama/unimarket-backend/internal/middleware"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("db connect error")
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			log.WithError(err).Fatal("auto migrate error")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier appmw.Verifier
	switch cfg.AuthProvider {
	case config.AuthProviderFirebase:
		fv, err := appmw.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, repository.NewUserRepository(conn))
		if err != nil {
			log.WithError(err).Fatal("failed to init firebase auth")
		}
		verifier = fv
	default:
		verifier = appmw.NewJWTVerifier(cfg.JWTSecret)
	}

	deps := server.Deps{Verifier: verifier}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, user cache will fall back to the database")
		}
		deps.Redis = rdb
	}
	publisher := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	deps.Publisher = publisher
	log.WithFields(logrus.Fields{
		"app_env":       cfg.AppEnv,
		"db_driver":     cfg.DBDriver,
		"auth_provider": cfg.AuthProvider,
		"events":        events.PublisherMode(publisher),
		"events_reason": events.PublisherNoopReason(publisher),
		"user_cache":    cfg.RedisAddr != "",
	}).Info("dependencies ready")

	srv := server.New(cfg, conn, log, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}
}
