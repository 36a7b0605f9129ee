package nutrition

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/store"
	"gorm.io/gorm"
)

type scriptedCompleter struct {
	reply string
	err   error
	calls int32
	last  ai.Request
}

func (c *scriptedCompleter) Complete(ctx context.Context, req ai.Request) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	c.last = req
	return c.reply, c.err
}

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "nutrition.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	st, err := store.New("sqlite", db)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return st
}

const saladReply = "Sure!\n```json\n" + `{"calories": 120, "protein": "3.5", "fat": 7, "carbs": 12.25, "score": 140,
"vitamin_a": 250, "vitamin_c": 18, "vitamin_d": 0, "vitamin_e": 1.2, "vitamin_b1": 0.05,
"vitamin_b2": 0.06, "vitamin_b6": 0.1, "vitamin_b12": 0, "calcium": 40, "iron": 1.1,
"potassium": 300, "magnesium": 20, "zinc": 0.3, "choline": -5}` + "\n```"

func TestLookupCachesAIResult(t *testing.T) {
	st := openTestStore(t)
	comp := &scriptedCompleter{reply: saladReply}
	p := NewProvider(comp, st, NewMemoryCache(time.Minute), 300, 0.2)
	ctx := context.Background()
	q := Query{FoodName: "salad", Amount: 100, Unit: "g"}

	first, err := p.Lookup(ctx, q)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if first.Source != SourceAI {
		t.Fatalf("expected ai source, got %s", first.Source)
	}
	if first.Calories != 120 || first.Protein != 3.5 || first.Carbs != 12.25 || first.Potassium != 300 {
		t.Fatalf("unexpected facts: %+v", first.Facts)
	}
	if first.Score != 100 || first.Choline != 0 {
		t.Fatalf("expected clamped score and non-negative choline: %+v", first.Facts)
	}
	if comp.last.Temperature != 0.2 || comp.last.MaxTokens != 300 {
		t.Fatalf("unexpected request settings: %+v", comp.last)
	}
	if !strings.Contains(comp.last.Messages[1].Content, "- Food: salad") {
		t.Fatalf("prompt does not name the food: %q", comp.last.Messages[1].Content)
	}

	second, err := p.Lookup(ctx, q)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if second.Source != SourceCache || second.Facts != first.Facts {
		t.Fatalf("expected identical cached facts, got %+v", second)
	}

	// a fresh process has an empty hot cache but the table survives
	cold := NewProvider(comp, st, NewMemoryCache(time.Minute), 300, 0.2)
	third, err := cold.Lookup(ctx, q)
	if err != nil {
		t.Fatalf("cold lookup: %v", err)
	}
	if third.Source != SourceCache || third.Facts != first.Facts {
		t.Fatalf("expected table hit, got %+v", third)
	}
	if n := atomic.LoadInt32(&comp.calls); n != 1 {
		t.Fatalf("expected 1 completion call, got %d", n)
	}
}

func TestCacheKeyIsRaw(t *testing.T) {
	if got := (Query{FoodName: "Rice ", Amount: 1.5, Unit: "cup"}).CacheKey(); got != "Rice _1.5_cup" {
		t.Fatalf("unexpected key %q", got)
	}

	comp := &scriptedCompleter{reply: `{"calories": 1}`}
	p := NewProvider(comp, openTestStore(t), nil, 0, 0.2)
	for _, name := range []string{"rice", "Rice"} {
		if _, err := p.Lookup(context.Background(), Query{FoodName: name, Amount: 100, Unit: "g"}); err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
	}
	if n := atomic.LoadInt32(&comp.calls); n != 2 {
		t.Fatalf("case variants should miss the cache; calls=%d", n)
	}
}

func TestLookupUnparseableReplyIsMalformedAndNotCached(t *testing.T) {
	st := openTestStore(t)
	comp := &scriptedCompleter{reply: "I am not sure about that food."}
	p := NewProvider(comp, st, nil, 300, 0.2)

	_, err := p.Lookup(context.Background(), Query{FoodName: "mystery", Amount: 1, Unit: "pc"})
	if !ai.IsKind(err, ai.KindMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	var n int64
	if err := st.Get(context.Background(), &n, "SELECT COUNT(*) FROM food_cache"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("failed lookup must not be cached")
	}
}

func TestLookupPropagatesGatewayErrors(t *testing.T) {
	comp := &scriptedCompleter{err: &ai.Error{Kind: ai.KindTimeout}}
	p := NewProvider(comp, openTestStore(t), nil, 300, 0.2)
	if _, err := p.Lookup(context.Background(), Query{FoodName: "egg", Amount: 1, Unit: "pc"}); !ai.IsKind(err, ai.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestLookupValidates(t *testing.T) {
	p := NewProvider(&scriptedCompleter{}, openTestStore(t), nil, 300, 0.2)
	for _, q := range []Query{{Amount: 1}, {FoodName: "egg", Amount: 0}} {
		if _, err := p.Lookup(context.Background(), q); err == nil {
			t.Fatalf("expected validation error for %+v", q)
		}
	}
}

func TestParseFactsLineFallback(t *testing.T) {
	text := "Calories: about 168\nProtein (g): 4.2\nFat：0.5\nCarbohydrates: 37.1\nNutrition score: 62\nVitamin B12: 0.1"
	f, err := ParseFacts(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Facts{Calories: 168, Protein: 4.2, Fat: 0.5, Carbs: 37.1, Score: 62, VitaminB12: 0.1}
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
}

func TestParseFactsRejectsNoise(t *testing.T) {
	for _, text := range []string{"", "no numbers here", "{not json", "Weather: 20"} {
		if _, err := ParseFacts(text); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}
