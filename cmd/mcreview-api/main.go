package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/authn"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/database"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/documents"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/featureflag"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/graph"
	httpapi "github.com/Enterprise-CMCS/managed-care-review-sub010/internal/http"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/metrics"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/notify"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/repository"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "mcreview-api")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	health := map[string]httpapi.Pinger{}

	var store repository.Store
	var db *sql.DB
	if cfg.Store == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	} else {
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		store = repository.NewPostgresStore(db, log)
	}
	health["database"] = store

	var kv featureflag.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = featureflag.NewRedisKV(redisClient)
	} else {
		kv = featureflag.NewMemoryKV()
	}
	flags := featureflag.NewStore(kv, cfg.FeatureFlags.KeyPrefix, cfg.FeatureFlags.Defaults, log)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	notifiers := notify.Multi{m}
	if cfg.Email.Enabled {
		notifiers = append(notifiers, notify.NewEmailer(notify.NewEmailClient(&cfg.Email, log), &cfg.Email, log))
	}
	var mqttClient *notify.MQTTClient
	if cfg.MQTT.Enabled {
		mqttClient, err = notify.NewMQTTClient(&cfg.MQTT)
		if err != nil {
			log.Warn("mqtt unavailable, status events will not be published", zap.Error(err))
		} else {
			notifiers = append(notifiers, notify.NewEventPublisher(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log))
		}
	}

	var docs graph.DocumentSigner
	if cfg.Storage.Enabled {
		presigner, err := documents.NewPresigner(&cfg.Storage)
		if err != nil {
			log.Fatal("failed to create document presigner", zap.Error(err))
		}
		docs = presigner
		health["storage"] = presigner
	}

	opts := []service.Option{
		service.WithFeatureFlags(flags),
		service.WithNotifier(notifiers),
	}
	var authenticator *authn.Authenticator
	issuer, err := authn.NewIssuer(&cfg.Auth)
	if err != nil {
		log.Warn("bearer tokens disabled", zap.Error(err))
		authenticator = authn.NewAuthenticator(nil, cfg.Auth.LocalLogin, log)
	} else {
		opts = append(opts, service.WithKeyIssuer(issuer))
		authenticator = authn.NewAuthenticator(issuer, cfg.Auth.LocalLogin, log)
	}
	if cfg.Auth.LocalLogin {
		log.Warn("local login enabled, X-Local-User is trusted")
	}

	svc := service.NewWorkflowService(store, log, opts...)
	schema, err := graph.NewSchema(graph.NewResolver(svc, docs, m, log))
	if err != nil {
		log.Fatal("failed to build graphql schema", zap.Error(err))
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		GraphQL:       schema,
		Authenticator: authenticator,
		Contracts:     svc,
		Flags:         flags,
		Health:        health,
		Metrics:       m,
		Logger:        log,
	})
	srv := service.NewServer(cfg.HTTP.Addr, handler, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = database.Close(db)
	}
}
