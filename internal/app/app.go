// Package app builds the services shared by the server, the worker and the
// admin CLI from one Config.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/db"
	"github.com/suPer8Hu/macrolog/internal/images"
	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/nutrition"
	"github.com/suPer8Hu/macrolog/internal/store"
	"github.com/suPer8Hu/macrolog/internal/store/redisstore"
	"gorm.io/gorm"
)

type App struct {
	Cfg   config.Config
	DB    *gorm.DB
	Store store.Store
	Redis *redisstore.Store

	Logbook   *logbook.Service
	Nutrition *nutrition.Provider
	Images    *images.Resolver
	Uploader  *images.Uploader
	Chat      *chat.Service
}

// OpenStore connects to the configured database and wraps it in a Store.
func OpenStore(cfg config.Config) (*gorm.DB, store.Store, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.DBDriver, gdb)
	if err != nil {
		return nil, nil, err
	}
	return gdb, st, nil
}

// NewRegistry registers every completion backend the config can describe.
// Missing keys are reported by the gateway per call, not here.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("azure", func(ctx context.Context, model string) (ai.Completer, error) {
		return ai.NewAzureGateway(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AITimeout), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Completer, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterGateway(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, cfg.AITimeout), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Completer, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaGateway(cfg.OllamaBaseURL, m, cfg.AITimeout), nil
	})
	return reg
}

// New opens the database and builds every service. migrate runs AutoMigrate
// first.
func New(ctx context.Context, cfg config.Config, migrate bool) (*App, error) {
	gdb, st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	completer, err := NewRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, DB: gdb, Store: st}

	lbRepo := logbook.NewRepo(st)
	a.Logbook = logbook.NewService(lbRepo)

	a.Nutrition = nutrition.NewProvider(completer, st, a.hotCache(ctx), cfg.NutritionMaxTokens, cfg.NutritionTemperature)

	a.Images = images.NewResolver(cfg.UploadDir)
	backend, err := uploadBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Uploader = images.NewUploader(backend, cfg.UploadMaxBytes)

	a.Chat = chat.NewService(
		chat.NewRepo(st),
		completer,
		chat.NewSummarizer(lbRepo),
		chat.NewCompactor(cfg.ChatCompactThreshold, cfg.ChatCompactKeep),
		chat.NewBuilder(a.Images),
		chat.Options{
			ContextWindowSize: cfg.ChatContextWindowSize,
			MaxTokens:         cfg.ChatMaxTokens,
			Temperature:       cfg.ChatTemperature,
		},
	)
	return a, nil
}

// hotCache prefers Redis and falls back to an in-process cache when Redis
// is not configured or does not answer.
func (a *App) hotCache(ctx context.Context) nutrition.HotCache {
	ttl := a.Cfg.NutritionCacheTTL
	if a.Cfg.RedisAddr == "" {
		return nutrition.NewMemoryCache(ttl)
	}
	rs := redisstore.New(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rs.Ping(pctx); err != nil {
		log.Printf("app: redis unavailable addr=%s err=%v, using memory cache", a.Cfg.RedisAddr, err)
		_ = rs.Close()
		return nutrition.NewMemoryCache(ttl)
	}
	a.Redis = rs
	return nutrition.NewRedisCache(rs, ttl)
}

func uploadBackend(ctx context.Context, cfg config.Config) (images.Backend, error) {
	if cfg.S3Bucket == "" {
		return &images.LocalBackend{Dir: cfg.UploadDir}, nil
	}
	b, err := images.NewS3Backend(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: %w", err)
	}
	return b, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
