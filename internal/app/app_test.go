package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DBDriver:              "sqlite",
		DBDSN:                 filepath.Join(dir, "app.sqlite"),
		AIProvider:            "azure",
		AITimeout:             time.Second,
		ChatContextWindowSize: 20,
		ChatCompactThreshold:  15,
		ChatCompactKeep:       5,
		NutritionCacheTTL:     time.Minute,
		UploadDir:             filepath.Join(dir, "uploads"),
		UploadMaxBytes:        1 << 20,
	}
}

func TestNewBuildsServicesOnMigratedDB(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Chat == nil || a.Logbook == nil || a.Nutrition == nil || a.Uploader == nil || a.Images == nil {
		t.Fatalf("services not built: %+v", a)
	}
	if a.Redis != nil {
		t.Fatalf("redis must stay nil without REDIS_ADDR")
	}

	// tables exist
	if _, err := a.Logbook.SaveDaily(context.Background(), logbook.DailyPatch{Date: "2025-01-01"}); err != nil {
		t.Fatalf("save daily: %v", err)
	}
	if _, err := a.Chat.CreateRoom(context.Background(), "", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.AIProvider = "nope"
	if _, err := New(context.Background(), cfg, true); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestRegistryResolvesConfiguredModels(t *testing.T) {
	cfg := config.Config{OllamaModel: "llama3:latest", OpenRouterModel: "openrouter/auto", AITimeout: time.Second}
	reg := NewRegistry(cfg)

	if names := reg.Names(); len(names) != 3 || names[0] != "azure" || names[1] != "ollama" || names[2] != "openrouter" {
		t.Fatalf("unexpected providers %v", names)
	}
	c, err := reg.Get(context.Background(), "ollama", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g := c.(*ai.Gateway); g.Model != "llama3:latest" {
		t.Fatalf("expected configured default model, got %q", g.Model)
	}
	c, _ = reg.Get(context.Background(), "openrouter", "mistral/small")
	if g := c.(*ai.Gateway); g.Model != "mistral/small" || g.Timeout != time.Second {
		t.Fatalf("unexpected gateway %+v", g)
	}
}
