package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/septivank/energy-metering-ingress/internal/config"
	"github.com/septivank/energy-metering-ingress/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startTimeout = 30 * time.Second

func main() {
	// .env lookup works for containers (cwd) and local runs from bin/ or cmd/ingress/
	envPaths := []string{
		".env",
		"../../.env",
	}

	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		grandParentDir := filepath.Dir(parentDir)

		envPaths = append(envPaths,
			filepath.Join(workDir, ".env"),
			filepath.Join(parentDir, ".env"),
			filepath.Join(grandParentDir, ".env"),
		)
	}

	envLoaded := false
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err == nil {
				absPath, _ := filepath.Abs(envPath)
				fmt.Printf("Loaded environment from: %s\n", absPath)
				envLoaded = true
				break
			}
		}
	}

	if !envLoaded {
		fmt.Println("No .env file found, using system environment variables")
	}

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogShipper,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideTokenCache,
			ProvideMQConnection,
			ProvidePublisher,
			ProvideDispatcher,
			ProvideValidator,
			ProvideNormalizer,
			ProvideTokenIssuer,
			ProvideTokenValidator,
			ProvideIngestionService,
			ProvideTokenHandler,
			ProvideHandlers,
			ProvideRouter,
		),
		fx.Invoke(startServer),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// used until the fx graph has built the configured logger
	bootLogger, err := logging.NewLogger("energy-metering-ingress", "info", nil)
	if err != nil {
		bootLogger = zap.NewNop()
	}
	bootLogger.Info("starting application", zap.Duration("timeout", startTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), startTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			bootLogger.Error("application did not start in time, a dependency (Postgres, RabbitMQ, Redis) is probably unreachable")
		}
		bootLogger.Fatal("application start failed", zap.Error(err))
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		bootLogger.Error("error stopping application", zap.Error(err))
	}
}
