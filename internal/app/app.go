// Package app wires configuration into the running components shared by the
// HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/catalog"
	"github.com/suPer8Hu/agroguard/internal/chat"
	"github.com/suPer8Hu/agroguard/internal/config"
	"github.com/suPer8Hu/agroguard/internal/db"
	"github.com/suPer8Hu/agroguard/internal/detection"
	"github.com/suPer8Hu/agroguard/internal/httpapi/handlers"
	"github.com/suPer8Hu/agroguard/internal/session"
	"github.com/suPer8Hu/agroguard/internal/store"
	"github.com/suPer8Hu/agroguard/internal/store/rabbitmq"
	"github.com/suPer8Hu/agroguard/internal/store/redisstore"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Store    *store.Store
	Images   *store.ImageStore
	Gateway  *ai.Gateway
	Sessions *session.Manager
	Detector *detection.Controller
	Chat     *chat.Service
	Catalog  *catalog.Catalog

	closers []func() error
}

// NewRegistry registers every supported provider. Factories fall back to the
// configured model when none is given.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		p, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, m, cfg.GeminiBaseURL, nil)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	return reg
}

// New opens the store, restores the session and builds the gateway. Redis and
// RabbitMQ are optional: when configured but unreachable the app runs without
// them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log, Catalog: catalog.Default()}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a.Store, err = store.New(ctx, gdb)
	if err != nil {
		if sqlDB, dbErr := gdb.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Images, err = store.NewImageStore(cfg.ImageDir())
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := NewRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := ai.Options{
		Timeout:       cfg.AITimeout,
		MaxImageBytes: cfg.MaxImageBytes,
		CitationLimit: cfg.CitationLimit,
		MarketRegion:  cfg.MarketRegion,
		CacheTTL:      cfg.CacheTTL,
	}
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rds.Ping(pctx)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, forecast cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rds.Close()
		} else {
			opts.Cache = rds
			a.closers = append(a.closers, rds.Close)
		}
	}
	a.Gateway = ai.NewGateway(provider, opts, log.Named("ai"))

	a.Sessions = session.NewManager(a.Store, session.Options{
		RegistrationEnabled: cfg.RegistrationEnabled,
		LogoutPolicy:        cfg.LogoutPolicy,
		Salt:                cfg.AccessCodeSalt,
	}, log.Named("session"))
	if _, err := a.Sessions.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	detOpts := []detection.Option{
		detection.WithLogger(log.Named("detection")),
		detection.WithMaxImageBytes(cfg.MaxImageBytes),
	}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Warn("rabbitmq unavailable, detection events disabled", zap.Error(err))
		} else {
			detOpts = append(detOpts, detection.WithNotifier(pub))
			a.closers = append(a.closers, pub.Close)
		}
	}
	a.Detector = detection.NewController(a.Gateway, a.Store, a.Images, a.Sessions, detOpts...)
	a.Chat = chat.NewService(chat.NewRepo(), a.Gateway, cfg.ChatContextWindowSize)
	return a, nil
}

// Handler exposes the components to the HTTP layer.
func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Sessions:  a.Sessions,
		Store:     a.Store,
		Detector:  a.Detector,
		Chat:      a.Chat,
		Gateway:   a.Gateway,
		Catalog:   a.Catalog,
		JWTSecret: a.Config.JWTSecret,
		TokenTTL:  tokenTTL,
		Log:       a.Log.Named("http"),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
