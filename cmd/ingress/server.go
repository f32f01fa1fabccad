package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/energy-metering-ingress/internal/cache"
	"github.com/septivank/energy-metering-ingress/internal/config"
	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/diagnostics"
	"github.com/septivank/energy-metering-ingress/internal/httpapi"
	"github.com/septivank/energy-metering-ingress/internal/mq"
	"github.com/septivank/energy-metering-ingress/internal/reading"
	"github.com/septivank/energy-metering-ingress/internal/repository"
	"github.com/septivank/energy-metering-ingress/internal/service"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown failed", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})

	return srv
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, cfg.ServiceName)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideTokenCache returns the Redis token cache, or a no-op cache when REDIS_ADDR is unset
func ProvideTokenCache(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) token.Cache {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, token cache disabled")
		return token.NopCache{}
	}
	client := cache.NewRedisClient(lc, logger, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	return cache.NewTokenCache(client)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the event publisher and closes its channel on stop
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.DiagnosticsExchange, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideDispatcher creates the background diagnostics dispatcher
func ProvideDispatcher(lc fx.Lifecycle, publisher *mq.Publisher, cfg *config.Config, logger *zap.Logger) *diagnostics.Dispatcher {
	dispatcher := diagnostics.NewDispatcher(publisher, diagnostics.Config{
		DiagnosticsRoutingKey: cfg.RabbitMQ.DiagnosticsRoutingKey,
		ReadingsRoutingKey:    cfg.RabbitMQ.ReadingsRoutingKey,
		Buffer:                cfg.Diagnostics.Buffer,
	}, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start()
			logger.Info("diagnostics dispatcher started", zap.Int("buffer", cfg.Diagnostics.Buffer))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return dispatcher.Stop(ctx)
		},
	})

	return dispatcher
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator()
}

// ProvideNormalizer creates a new reading normalizer instance
func ProvideNormalizer(v *validator.Validator, cfg *config.Config, logger *zap.Logger) *reading.Normalizer {
	return reading.NewNormalizer(v, cfg.Reading.DefaultTimezone, logger)
}

// ProvideTokenIssuer creates a new token issuer instance
func ProvideTokenIssuer(repo *repository.Repository, tokenCache token.Cache, cfg *config.Config, logger *zap.Logger) *token.Issuer {
	return token.NewIssuer(repo, tokenCache, cfg.Token.TTL, logger)
}

// ProvideTokenValidator creates a new token validator instance
func ProvideTokenValidator(repo *repository.Repository, tokenCache token.Cache, logger *zap.Logger) *token.Validator {
	return token.NewValidator(repo, tokenCache, logger)
}

// ProvideIngestionService creates a new ingestion service instance
func ProvideIngestionService(
	tokens *token.Validator,
	repo *repository.Repository,
	v *validator.Validator,
	normalizer *reading.Normalizer,
	dispatcher *diagnostics.Dispatcher,
	logger *zap.Logger,
) *service.IngestionService {
	return service.NewIngestionService(tokens, repo, v, normalizer, dispatcher, logger)
}

// ProvideTokenHandler creates a new token handler instance
func ProvideTokenHandler(issuer *token.Issuer, dispatcher *diagnostics.Dispatcher, logger *zap.Logger) *service.TokenHandler {
	return service.NewTokenHandler(issuer, dispatcher, logger)
}

// ProvideHandlers creates the HTTP handlers
func ProvideHandlers(
	ingestion *service.IngestionService,
	tokens *service.TokenHandler,
	repo *repository.Repository,
	logger *zap.Logger,
) *httpapi.Handlers {
	return httpapi.NewHandlers(ingestion, tokens, repo, logger)
}

// ProvideRouter creates the gin engine
func ProvideRouter(handlers *httpapi.Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return httpapi.NewRouter(handlers, logger)
}
