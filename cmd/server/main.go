package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/config"
	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/features"
	"github.com/Brownie44l1/crack-api/internal/handlers"
	"github.com/Brownie44l1/crack-api/internal/logging"
	"github.com/Brownie44l1/crack-api/internal/model"
	"github.com/Brownie44l1/crack-api/internal/telegram"
)

func main() {
	configPath := flag.String("config", "crack-api.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	root := projectRoot()
	modelPath := resolve(root, cfg.Model.Path)
	logger.Info("loading model", zap.String("path", modelPath))

	// A missing or corrupt artifact leaves the engine disabled; the server
	// still starts and reports model_unavailable per request.
	engine := model.NewEngine(logger)
	engine.Load(model.LoadOptions{
		ModelPath:      modelPath,
		MetadataPath:   resolve(root, cfg.Model.MetadataPath),
		RuntimeLibrary: cfg.Model.RuntimeLibrary,
	})
	defer engine.Close() //nolint:errcheck

	d := detector.New(features.NewDefaultExtractor(), engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.Telegram.Token, d, logger)
		if err != nil {
			logger.Error("telegram bot disabled", zap.Error(err))
		} else {
			go func() {
				if err := bot.Run(ctx); err != nil {
					logger.Error("telegram bot stopped", zap.Error(err))
				}
			}()
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	handlers.NewHandler(d, engine, logger, cfg.Server.MaxUploadBytes).RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	logger.Info("server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Stringer("model_state", engine.State()),
		zap.Int("input_dim", engine.InputDim()))
	if err := serveHTTPServer(ctx, server, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

// projectRoot is the working directory, or the repository root when run
// from cmd/server.
func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(wd) == "server" {
		return filepath.Join(wd, "../..")
	}
	return wd
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
