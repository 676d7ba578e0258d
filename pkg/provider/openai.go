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
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// OpenAIAdapter talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAdapter struct {
	name     string
	endpoint string
	model    string
	keys     *KeyRing
	scorer   Scorer
	http     *resty.Client
}

// NewOpenAI creates an adapter for cfg. A nil scorer uses CompletenessScorer.
func NewOpenAI(cfg models.ProviderConfig, scorer Scorer) *OpenAIAdapter {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	model := cfg.ModelID
	if model == "" {
		model = defaultOpenAIModel
	}
	if scorer == nil {
		scorer = CompletenessScorer{}
	}
	return &OpenAIAdapter{
		name:     cfg.Name,
		endpoint: endpoint,
		model:    model,
		keys:     NewKeyRing(cfg.Credentials),
		scorer:   scorer,
		http:     newHTTPClient(),
	}
}

func (a *OpenAIAdapter) Name() string { return a.name }

// Translate sends one chat completion request, rotating keys on auth or rate-limit errors.
func (a *OpenAIAdapter) Translate(ctx context.Context, in Input) (Output, error) {
	out, err := withKeys(a.keys, func(key string) (Output, error) {
		return a.call(ctx, key, in)
	})
	if err != nil {
		return Output{}, err
	}
	out.Confidence = a.scorer.Score(in, out)
	return out, nil
}

func (a *OpenAIAdapter) call(ctx context.Context, key string, in Input) (Output, error) {
	maxTokens := maxTokensFor(in.Text)
	temp := defaultTemperature
	body := models.ChatCompletionRequest{
		Model: a.model,
		Messages: []models.ChatMessage{
			{Role: "system", Content: buildSystemPrompt(in.TargetLang)},
			{Role: "user", Content: in.Text},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	req := a.http.R().SetContext(ctx).SetBody(body)
	if key != "" {
		req.SetAuthToken(key)
	}
	resp, err := req.Post(a.endpoint + "/chat/completions")
	if err != nil {
		return Output{}, transportError(ctx, a.name, err)
	}
	if resp.IsError() {
		return Output{}, statusError(a.name, resp.StatusCode(), errorMessage(resp))
	}

	var cr models.ChatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return Output{}, invalidResponse(a.name, fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return Output{}, invalidResponse(a.name, errors.New("no choices returned"))
	}
	text := strings.TrimSpace(cr.Choices[0].Message.Content)
	if text == "" {
		return Output{}, invalidResponse(a.name, errors.New("empty translation"))
	}
	return Output{Text: text, FinishReason: cr.Choices[0].FinishReason}, nil
}

// errorMessage extracts the provider's error message, falling back to the raw body.
func errorMessage(resp *resty.Response) string {
	var body models.APIErrorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	s := strings.TrimSpace(resp.String())
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = resp.Status()
	}
	return s
}
