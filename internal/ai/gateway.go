package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	// TruncationNotice is appended to replies cut off by the token cap.
	TruncationNotice = "\n\n(This reply was cut off at the length limit. Ask me to continue for the rest.)"

	maxResponseBytes = 4 * 1024 * 1024
	maxDetailBytes   = 4 * 1024
)

const (
	finishContentFilter = "content_filter"
	finishLength        = "length"
)

// Gateway talks to an OpenAI-compatible chat completions endpoint.
// Azure, OpenRouter and Ollama differ only in URL, auth header and the name
// of the token-cap field.
type Gateway struct {
	Name        string
	Endpoint    string
	APIKey      string
	KeyRequired bool
	// AuthHeader is "api-key" (Azure) or "Authorization" (Bearer token).
	AuthHeader string
	// TokenField is "max_completion_tokens" or "max_tokens".
	TokenField string
	Model      string
	Headers    map[string]string
	Timeout    time.Duration
	Client     *http.Client
}

func NewAzureGateway(endpoint, apiKey string, timeout time.Duration) *Gateway {
	return &Gateway{
		Name:        "azure",
		Endpoint:    strings.TrimSpace(endpoint),
		APIKey:      apiKey,
		KeyRequired: true,
		AuthHeader:  "api-key",
		TokenField:  "max_completion_tokens",
		Timeout:     timeout,
		Client:      &http.Client{},
	}
}

func NewOpenRouterGateway(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *Gateway {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	headers := map[string]string{}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	if appName != "" {
		headers["X-Title"] = appName
	}
	return &Gateway{
		Name:        "openrouter",
		Endpoint:    fmt.Sprintf("%s/chat/completions", strings.TrimRight(baseURL, "/")),
		APIKey:      apiKey,
		KeyRequired: true,
		AuthHeader:  "Authorization",
		TokenField:  "max_tokens",
		Model:       model,
		Headers:     headers,
		Timeout:     timeout,
		Client:      &http.Client{},
	}
}

// NewOllamaGateway uses Ollama's OpenAI-compatible endpoint; no key needed.
func NewOllamaGateway(baseURL, model string, timeout time.Duration) *Gateway {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &Gateway{
		Name:       "ollama",
		Endpoint:   fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(baseURL, "/")),
		AuthHeader: "Authorization",
		TokenField: "max_tokens",
		Model:      model,
		Timeout:    timeout,
		Client:     &http.Client{},
	}
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wirePart struct {
	Type     PartType      `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatReq struct {
	Model               string    `json:"model,omitempty"`
	Messages            []wireMsg `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	MaxTokens           int       `json:"max_tokens,omitempty"`
	Temperature         float64   `json:"temperature"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toWire(messages []Message) []wireMsg {
	out := make([]wireMsg, 0, len(messages))
	for _, m := range messages {
		if len(m.Parts) == 0 {
			out = append(out, wireMsg{Role: m.Role, Content: m.Content})
			continue
		}
		parts := make([]wirePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case PartImage:
				parts = append(parts, wirePart{Type: PartImage, ImageURL: &wireImageURL{URL: p.ImageURL}})
			default:
				parts = append(parts, wirePart{Type: PartText, Text: p.Text})
			}
		}
		out = append(out, wireMsg{Role: m.Role, Content: parts})
	}
	return out
}

func (g *Gateway) fail(kind Kind, status int, detail string, err error) *Error {
	return &Error{Kind: kind, Provider: g.Name, Status: status, Detail: detail, Err: err}
}

func (g *Gateway) timeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultTimeout
	}
	return g.Timeout
}

// Complete sends req and classifies the outcome. The whole exchange, body
// read included, runs under the gateway timeout; on expiry the request is
// cancelled and a KindTimeout error is returned.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(g.Endpoint) == "" {
		return "", g.fail(KindConfig, 0, "endpoint is not configured", nil)
	}
	if g.KeyRequired && strings.TrimSpace(g.APIKey) == "" {
		return "", g.fail(KindConfig, 0, "api key is not configured", nil)
	}
	if g.Client == nil {
		return "", g.fail(KindConfig, 0, "http client is nil", nil)
	}

	body := chatReq{
		Model:       g.Model,
		Messages:    toWire(req.Messages),
		Temperature: req.Temperature,
	}
	if g.TokenField == "max_tokens" {
		body.MaxTokens = req.MaxTokens
	} else {
		body.MaxCompletionTokens = req.MaxTokens
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(cctx, http.MethodPost, g.Endpoint, bytes.NewReader(b))
	if err != nil {
		return "", g.fail(KindConfig, 0, "invalid endpoint", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		if strings.EqualFold(g.AuthHeader, "Authorization") {
			httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
		} else {
			httpReq.Header.Set(g.AuthHeader, g.APIKey)
		}
	}
	for k, v := range g.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return "", g.transportError(cctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", g.fail(KindHTTP, resp.StatusCode, msg, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", g.transportError(cctx, err)
	}

	var decoded chatResp
	if err := json.Unmarshal(raw, &decoded); err != nil {
		log.Printf("ai: malformed response provider=%s status=%d err=%v body=%q", g.Name, resp.StatusCode, err, snippet(raw))
		return "", g.fail(KindMalformed, resp.StatusCode, "response is not valid JSON", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", g.fail(KindHTTP, resp.StatusCode, decoded.Error.Message, nil)
	}

	text, err := g.interpret(decoded)
	if err != nil {
		if IsKind(err, KindMalformed) {
			log.Printf("ai: malformed response provider=%s status=%d err=%v body=%q", g.Name, resp.StatusCode, err, snippet(raw))
		}
		return "", err
	}
	return text, nil
}

func (g *Gateway) interpret(decoded chatResp) (string, error) {
	if len(decoded.Choices) == 0 {
		return "", g.fail(KindMalformed, 0, "response has no choices", nil)
	}
	choice := decoded.Choices[0]
	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}
	empty := strings.TrimSpace(text) == ""

	switch choice.FinishReason {
	case finishContentFilter:
		if empty {
			return "", g.fail(KindContentFilter, 0, "reply was blocked by the content filter", nil)
		}
	case finishLength:
		if !empty {
			return text + TruncationNotice, nil
		}
	}
	if empty {
		return "", g.fail(KindMalformed, 0, fmt.Sprintf("reply has no content (finish_reason=%q)", choice.FinishReason), nil)
	}
	return text, nil
}

func (g *Gateway) transportError(cctx context.Context, err error) error {
	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		return g.fail(KindTimeout, 0, fmt.Sprintf("no reply within %s", g.timeout()), err)
	case errors.Is(cctx.Err(), context.Canceled):
		return g.fail(KindCanceled, 0, "request cancelled by caller", err)
	}
	return g.fail(KindNetwork, 0, "", err)
}

func snippet(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
