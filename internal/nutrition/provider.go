package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/store"
	"gorm.io/datatypes"
)

var ErrInvalid = errors.New("invalid nutrition query")

const systemPrompt = "You are an assistant that provides nutrition facts for foods."

const userPromptTmpl = `Give the nutrition facts for this food.
- Food: %s
- Amount: %s
- Unit: %s

Reply with this JSON object only, no other text:

{
  "calories": number,    // kcal
  "protein": number,     // g
  "fat": number,         // g
  "carbs": number,       // g
  "score": number,       // nutrition score 0-100
  "vitamin_a": number,   // µg RAE
  "vitamin_c": number,   // mg
  "vitamin_d": number,   // µg
  "vitamin_e": number,   // mg
  "vitamin_b1": number,  // mg
  "vitamin_b2": number,  // mg
  "vitamin_b6": number,  // mg
  "vitamin_b12": number, // µg
  "calcium": number,     // mg
  "iron": number,        // mg
  "potassium": number,   // mg
  "magnesium": number,   // mg
  "zinc": number,        // mg
  "choline": number      // mg
}

Use bare numbers only, never strings such as "kcal" or "g".
Be as accurate as standard food databases allow. Use 0 for anything unknown.`

type Query struct {
	FoodName string  `json:"food_name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

// CacheKey joins the raw inputs; no case or whitespace normalization.
func (q Query) CacheKey() string {
	return q.FoodName + "_" + formatAmount(q.Amount) + "_" + q.Unit
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type Provider struct {
	completer   ai.Completer
	st          store.Store
	hot         HotCache
	maxTokens   int
	temperature float64
}

// NewProvider wires the lookup chain. hot may be nil.
func NewProvider(c ai.Completer, st store.Store, hot HotCache, maxTokens int, temperature float64) *Provider {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Provider{completer: c, st: st, hot: hot, maxTokens: maxTokens, temperature: temperature}
}

// Lookup checks the hot cache, then the food_cache table, then asks the
// completion service and records the answer in both caches.
func (p *Provider) Lookup(ctx context.Context, q Query) (Result, error) {
	if strings.TrimSpace(q.FoodName) == "" {
		return Result{}, fmt.Errorf("%w: food_name is required", ErrInvalid)
	}
	if q.Amount <= 0 {
		return Result{}, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	if strings.TrimSpace(q.Unit) == "" {
		q.Unit = "g"
	}
	key := q.CacheKey()

	if p.hot != nil {
		if f, ok := p.hot.Get(ctx, key); ok {
			return Result{Facts: f, Source: SourceCache}, nil
		}
	}

	f, err := p.fromTable(ctx, key)
	switch {
	case err == nil:
		if p.hot != nil {
			p.hot.Set(ctx, key, f)
		}
		return Result{Facts: f, Source: SourceCache}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, err
	}

	text, err := p.completer.Complete(ctx, ai.Request{
		Messages: []ai.Message{
			ai.TextMessage(ai.RoleSystem, systemPrompt),
			ai.TextMessage(ai.RoleUser, fmt.Sprintf(userPromptTmpl, q.FoodName, formatAmount(q.Amount), q.Unit)),
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return Result{}, err
	}

	f, err = ParseFacts(text)
	if err != nil {
		log.Printf("nutrition: unparseable reply key=%q body=%q", key, truncate(text, 300))
		return Result{}, &ai.Error{Kind: ai.KindMalformed, Provider: "nutrition", Detail: err.Error()}
	}

	if err := p.toTable(ctx, key, f); err != nil {
		// the lookup itself succeeded
		log.Printf("nutrition: cache write key=%q err=%v", key, err)
	}
	if p.hot != nil {
		p.hot.Set(ctx, key, f)
	}
	return Result{Facts: f, Source: SourceAI}, nil
}

func (p *Provider) fromTable(ctx context.Context, key string) (Facts, error) {
	var e CacheEntry
	if err := p.st.Get(ctx, &e, "SELECT * FROM food_cache WHERE cache_key = ?", key); err != nil {
		return Facts{}, err
	}
	var f Facts
	if err := json.Unmarshal(e.Facts, &f); err != nil {
		return Facts{}, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return f, nil
}

// toTable inserts key unless another lookup already stored it.
func (p *Provider) toTable(ctx context.Context, key string, f Facts) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return p.st.Tx(ctx, func(tx store.Store) error {
		var n int64
		if err := tx.Get(ctx, &n, "SELECT COUNT(*) FROM food_cache WHERE cache_key = ?", key); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err := tx.Exec(ctx, "INSERT INTO food_cache (cache_key, facts, created_at) VALUES (?, ?, ?)",
			key, datatypes.JSON(b), time.Now().UTC())
		return err
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
