package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/lingoroute/lingoroute/pkg/models"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com"
	defaultAnthropicModel    = "claude-3-5-haiku-latest"
	anthropicVersion         = "2023-06-01"
)

// AnthropicAdapter talks to the Anthropic messages API.
type AnthropicAdapter struct {
	name     string
	endpoint string
	model    string
	keys     *KeyRing
	scorer   Scorer
	http     *resty.Client
}

// NewAnthropic creates an adapter for cfg. A nil scorer uses CompletenessScorer.
func NewAnthropic(cfg models.ProviderConfig, scorer Scorer) *AnthropicAdapter {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	model := cfg.ModelID
	if model == "" {
		model = defaultAnthropicModel
	}
	if scorer == nil {
		scorer = CompletenessScorer{}
	}
	return &AnthropicAdapter{
		name:     cfg.Name,
		endpoint: endpoint,
		model:    model,
		keys:     NewKeyRing(cfg.Credentials),
		scorer:   scorer,
		http:     newHTTPClient().SetHeader("anthropic-version", anthropicVersion),
	}
}

func (a *AnthropicAdapter) Name() string { return a.name }

// Translate sends one messages request, rotating keys on auth or rate-limit errors.
func (a *AnthropicAdapter) Translate(ctx context.Context, in Input) (Output, error) {
	out, err := withKeys(a.keys, func(key string) (Output, error) {
		return a.call(ctx, key, in)
	})
	if err != nil {
		return Output{}, err
	}
	out.Confidence = a.scorer.Score(in, out)
	return out, nil
}

func (a *AnthropicAdapter) call(ctx context.Context, key string, in Input) (Output, error) {
	temp := defaultTemperature
	body := models.AnthropicRequest{
		Model:       a.model,
		System:      buildSystemPrompt(in.TargetLang),
		Messages:    []models.ChatMessage{{Role: "user", Content: in.Text}},
		MaxTokens:   maxTokensFor(in.Text),
		Temperature: &temp,
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", key).
		SetBody(body).
		Post(a.endpoint + "/v1/messages")
	if err != nil {
		return Output{}, transportError(ctx, a.name, err)
	}
	if resp.IsError() {
		return Output{}, statusError(a.name, resp.StatusCode(), errorMessage(resp))
	}

	var ar models.AnthropicResponse
	if err := json.Unmarshal(resp.Body(), &ar); err != nil {
		return Output{}, invalidResponse(a.name, fmt.Errorf("decode response: %w", err))
	}
	var sb strings.Builder
	for _, c := range ar.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
			break
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Output{}, invalidResponse(a.name, errors.New("no text content returned"))
	}
	return Output{Text: text, FinishReason: ar.StopReason}, nil
}
