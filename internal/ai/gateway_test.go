package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func replyJSON(content *string, finish string) string {
	type msg struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	}
	type choice struct {
		Message      msg    `json:"message"`
		FinishReason string `json:"finish_reason"`
	}
	b, _ := json.Marshal(map[string]any{
		"choices": []choice{{Message: msg{Role: "assistant", Content: content}, FinishReason: finish}},
	})
	return string(b)
}

func strPtr(s string) *string { return &s }

func newTestGateway(url string) *Gateway {
	return NewAzureGateway(url, "test-key", 2*time.Second)
}

func TestCompleteSendsAzureRequestShape(t *testing.T) {
	var got map[string]any
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, replyJSON(strPtr("hello"), "stop"))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	text, err := g.Complete(context.Background(), Request{
		Messages: []Message{
			TextMessage(RoleSystem, "sys"),
			ImageMessage(RoleUser, "what is this?", "data:image/png;base64,AAAA"),
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "hello" {
		t.Fatalf("unexpected text %q", text)
	}
	if apiKey != "test-key" {
		t.Fatalf("expected api-key header, got %q", apiKey)
	}
	if got["max_completion_tokens"].(float64) != 300 {
		t.Fatalf("expected max_completion_tokens=300, got %v", got["max_completion_tokens"])
	}
	if got["temperature"].(float64) != 0.7 {
		t.Fatalf("expected temperature=0.7, got %v", got["temperature"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].(map[string]any)["content"] != "sys" {
		t.Fatalf("system content should be a plain string: %v", msgs[0])
	}
	parts := msgs[1].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text+image parts, got %v", parts)
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" || img["image_url"].(map[string]any)["url"] != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image part: %v", img)
	}
}

func TestCompleteOpenRouterUsesBearerAndMaxTokens(t *testing.T) {
	var auth, title string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, replyJSON(strPtr("ok"), "stop"))
	}))
	defer srv.Close()

	g := NewOpenRouterGateway(srv.URL, "or-key", "openrouter/auto", "", "macrolog", time.Second)
	if _, err := g.Complete(context.Background(), Request{Messages: []Message{TextMessage(RoleUser, "hi")}, MaxTokens: 50}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if auth != "Bearer or-key" || title != "macrolog" {
		t.Fatalf("unexpected headers auth=%q title=%q", auth, title)
	}
	if got["max_tokens"].(float64) != 50 || got["model"] != "openrouter/auto" {
		t.Fatalf("unexpected body: %v", got)
	}
	if _, present := got["max_completion_tokens"]; present {
		t.Fatalf("max_completion_tokens must be omitted for openrouter")
	}
}

func TestCompleteClassifiesResponses(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantText string
	}{
		{"verbatim", 200, replyJSON(strPtr("fine"), "stop"), "", "fine"},
		{"truncated keeps partial text", 200, replyJSON(strPtr("partial"), "length"), "", "partial" + TruncationNotice},
		{"content filter without text", 200, replyJSON(nil, "content_filter"), KindContentFilter, ""},
		{"content filter with empty text", 200, replyJSON(strPtr(""), "content_filter"), KindContentFilter, ""},
		{"no choices", 200, `{"choices":[]}`, KindMalformed, ""},
		{"missing choices", 200, `{}`, KindMalformed, ""},
		{"not json", 200, `<html>oops</html>`, KindMalformed, ""},
		{"empty content on stop", 200, replyJSON(strPtr("  "), "stop"), KindMalformed, ""},
		{"length without text", 200, replyJSON(nil, "length"), KindMalformed, ""},
		{"http error", 429, `{"error":"rate limited"}`, KindHTTP, ""},
		{"in-band error", 200, `{"error":{"message":"bad model"}}`, KindHTTP, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			text, err := newTestGateway(srv.URL).Complete(context.Background(), Request{Messages: []Message{TextMessage(RoleUser, "q")}})
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if text != tc.wantText {
					t.Fatalf("text = %q, want %q", text, tc.wantText)
				}
				return
			}
			if !IsKind(err, tc.wantKind) {
				t.Fatalf("expected kind %s, got %v", tc.wantKind, err)
			}
			if text != "" {
				t.Fatalf("expected no text on error, got %q", text)
			}
		})
	}
}

func TestCompleteHTTPErrorCarriesStatusAndDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "deployment not found")
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL).Complete(context.Background(), Request{})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Kind != KindHTTP || e.Status != http.StatusBadRequest || e.Detail != "deployment not found" {
		t.Fatalf("unexpected error: %+v", e)
	}
	if e.Retryable() {
		t.Fatalf("http errors are not retryable")
	}
}

func TestCompleteTimeoutAbortsRequest(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server only notices a disconnect once the body is consumed
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	g.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := g.Complete(context.Background(), Request{})
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout did not abort promptly: %s", time.Since(start))
	}
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never observed the cancelled request")
	}
	var e *Error
	if !errors.As(err, &e) || !e.Retryable() {
		t.Fatalf("timeout should be retryable")
	}
}

func TestCompleteCallerCancelIsNotRetryable(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := newTestGateway(srv.URL).Complete(ctx, Request{})
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindCanceled {
		t.Fatalf("expected canceled kind, got %v", err)
	}
	if e.Retryable() {
		t.Fatalf("a cancelled call must not be retried")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cause should be context.Canceled, got %v", err)
	}
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the request go away")
	}
}

func TestCompleteConnectionFailureIsNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestGateway(url).Complete(context.Background(), Request{})
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if IsKind(err, KindTimeout) {
		t.Fatalf("connection failure must not be reported as timeout")
	}
}

func TestCompleteMissingConfigMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	for _, g := range []*Gateway{
		NewAzureGateway(srv.URL, "", time.Second),
		NewAzureGateway("", "key", time.Second),
	} {
		_, err := g.Complete(context.Background(), Request{})
		if !IsKind(err, KindConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("expected no network calls, got %d", n)
	}
}

func TestOllamaGatewayNeedsNoKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("ollama should not send auth")
		}
		_, _ = io.WriteString(w, replyJSON(strPtr("local"), "stop"))
	}))
	defer srv.Close()

	text, err := NewOllamaGateway(srv.URL, "", time.Second).Complete(context.Background(), Request{})
	if err != nil || text != "local" {
		t.Fatalf("unexpected result text=%q err=%v", text, err)
	}
}

func TestRegistryRoutesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Azure ", func(ctx context.Context, model string) (Completer, error) {
		return NewAzureGateway("http://example.invalid", "k", time.Second), nil
	})

	c, err := reg.Get(context.Background(), "azure", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g, ok := c.(*Gateway); !ok || g.Name != "azure" {
		t.Fatalf("unexpected completer %#v", c)
	}
	_, err = reg.Get(context.Background(), "nope", "")
	if !IsKind(err, KindConfig) || !strings.Contains(err.Error(), "registered: azure") {
		t.Fatalf("expected config error listing providers, got %v", err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "azure" {
		t.Fatalf("unexpected names %v", names)
	}
}
