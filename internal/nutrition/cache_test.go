package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/macrolog/internal/store/redisstore"
)

// stubJSONStore keeps JSON values in memory. When err is set every call fails.
type stubJSONStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newStubJSONStore() *stubJSONStore {
	return &stubJSONStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubJSONStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	b, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (s *stubJSONStore) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.data[key] = b
	s.ttls[key] = ttl
	return nil
}

func TestRedisCacheStoresUnderPrefixedKey(t *testing.T) {
	ctx := context.Background()
	rs := newStubJSONStore()
	c := NewRedisCache(rs, time.Hour)

	if _, ok := c.Get(ctx, "salad_100_g"); ok {
		t.Fatalf("empty cache should miss")
	}
	c.Set(ctx, "salad_100_g", Facts{Calories: 120, Protein: 3.5, Score: 80})

	if rs.ttls["nutrition:salad_100_g"] != time.Hour {
		t.Fatalf("expected prefixed key with ttl, got %v", rs.ttls)
	}
	f, ok := c.Get(ctx, "salad_100_g")
	if !ok || f.Calories != 120 || f.Protein != 3.5 || f.Score != 80 {
		t.Fatalf("unexpected hit ok=%v facts=%+v", ok, f)
	}
}

func TestRedisCacheErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	rs := newStubJSONStore()
	c := NewRedisCache(rs, time.Hour)
	c.Set(ctx, "salad_100_g", Facts{Calories: 120})

	rs.err = errors.New("connection reset")
	if _, ok := c.Get(ctx, "salad_100_g"); ok {
		t.Fatalf("a failing redis must read as a miss")
	}
	c.Set(ctx, "egg_50_g", Facts{Calories: 70})
	if _, stored := rs.data["nutrition:egg_50_g"]; stored {
		t.Fatalf("failed set should not store anything")
	}
}

func TestRedisCacheUnreachableServerIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	rs := redisstore.NewWithClient(rdb, "test:")
	defer rs.Close()

	c := NewRedisCache(rs, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Set(ctx, "salad_100_g", Facts{Calories: 120})
	if _, ok := c.Get(ctx, "salad_100_g"); ok {
		t.Fatalf("unreachable redis must read as a miss")
	}
}

func TestLookupWithFailingRedisFallsBackToTable(t *testing.T) {
	ctx := context.Background()
	rs := newStubJSONStore()
	rs.err = errors.New("redis down")
	comp := &scriptedCompleter{reply: saladReply}
	p := NewProvider(comp, openTestStore(t), NewRedisCache(rs, time.Hour), 0, 0.2)

	q := Query{FoodName: "salad", Amount: 100, Unit: "g"}
	first, err := p.Lookup(ctx, q)
	if err != nil || first.Source != SourceAI {
		t.Fatalf("first lookup source=%q err=%v", first.Source, err)
	}
	second, err := p.Lookup(ctx, q)
	if err != nil || second.Source != SourceCache || second.Calories != first.Calories {
		t.Fatalf("second lookup should come from the table: %+v err=%v", second, err)
	}
	if n := atomic.LoadInt32(&comp.calls); n != 1 {
		t.Fatalf("expected 1 completion call, got %d", n)
	}
}
