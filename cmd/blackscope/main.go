// Command blackscope runs the website-QA evaluation service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackscope/blackscope/browser"
	"github.com/blackscope/blackscope/config"
	"github.com/blackscope/blackscope/nodes"
	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/emit"
	"github.com/blackscope/blackscope/pipeline/model"
	anthropicmodel "github.com/blackscope/blackscope/pipeline/model/anthropic"
	googlemodel "github.com/blackscope/blackscope/pipeline/model/google"
	openaimodel "github.com/blackscope/blackscope/pipeline/model/openai"
	"github.com/blackscope/blackscope/server"
	"github.com/blackscope/blackscope/webclient"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config YAML file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "blackscope: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat, vision, closeModels, err := buildModels(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeModels()

	registry, err := pipeline.NewRegistry(nodes.Registrations(nodes.Deps{Chat: chat, Vision: vision}))
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(promReg)

	tracerProvider := sdktrace.NewTracerProvider()
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()
	emitter := emit.NewMultiEmitter(
		emit.NewLogEmitter(os.Stdout, cfg.LogJSON),
		emit.NewOTelEmitter(tracerProvider.Tracer("blackscope/pipeline")),
	)

	srv := server.New(server.Options{
		Registry: registry,
		Order:    nodes.DefaultOrder(),
		NewSession: func() *webclient.Session {
			return webclient.NewSession(webclient.WithTimeout(cfg.RequestTimeout))
		},
		NewBrowser: func(runCtx context.Context) (browser.Driver, context.CancelFunc, error) {
			session, cancel := browser.NewSession(runCtx, browser.Options{
				Headless: cfg.HeadlessBrowser,
				Width:    cfg.BrowserWidth,
				Height:   cfg.BrowserHeight,
			})
			return session, cancel, nil
		},
		Logger:         logger,
		Metrics:        metrics,
		Emitter:        emitter,
		Gatherer:       promReg,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("provider", cfg.Provider))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogJSON {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildModels selects the model backend. The vision handle may be a second
// instance of the same provider when a dedicated vision model is configured.
func buildModels(ctx context.Context, cfg config.Config) (model.ChatModel, model.VisionModel, func(), error) {
	noop := func() {}
	switch cfg.Provider {
	case "openai":
		chat, err := openaimodel.NewChatModel(cfg.OpenAIAPIKey, cfg.Model)
		if err != nil {
			return nil, nil, noop, err
		}
		vision := chat
		if cfg.VisionModel != "" && cfg.VisionModel != cfg.Model {
			if vision, err = openaimodel.NewChatModel(cfg.OpenAIAPIKey, cfg.VisionModel); err != nil {
				return nil, nil, noop, err
			}
		}
		return chat, vision, noop, nil

	case "anthropic":
		chat, err := anthropicmodel.NewChatModel(cfg.AnthropicAPIKey, cfg.Model)
		if err != nil {
			return nil, nil, noop, err
		}
		vision := chat
		if cfg.VisionModel != "" && cfg.VisionModel != cfg.Model {
			if vision, err = anthropicmodel.NewChatModel(cfg.AnthropicAPIKey, cfg.VisionModel); err != nil {
				return nil, nil, noop, err
			}
		}
		return chat, vision, noop, nil

	case "google":
		chat, err := googlemodel.NewChatModel(ctx, cfg.GoogleAPIKey, cfg.Model)
		if err != nil {
			return nil, nil, noop, err
		}
		vision := chat
		closeAll := func() { _ = chat.Close() }
		if cfg.VisionModel != "" && cfg.VisionModel != cfg.Model {
			if vision, err = googlemodel.NewChatModel(ctx, cfg.GoogleAPIKey, cfg.VisionModel); err != nil {
				closeAll()
				return nil, nil, noop, err
			}
			visionHandle := vision
			closeAll = func() {
				_ = chat.Close()
				_ = visionHandle.Close()
			}
		}
		return chat, vision, closeAll, nil

	case "mock":
		m := &model.MockChatModel{}
		return m, m, noop, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
