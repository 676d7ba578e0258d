package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/dispatcher"
	"github.com/lingoroute/lingoroute/pkg/models"
)

// tool is one MCP tool. call returns a refusal for requests the control
// service rejects and an error when the service itself fails.
type tool struct {
	spec toolSpec
	call func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func (s *Server) register(t tool) {
	s.tools[t.spec.Name] = t
	s.specs = append(s.specs, t.spec)
}

func (s *Server) registerTools() {
	s.register(tool{
		spec: toolSpec{
			Name:        "lingoroute_status",
			Description: "Show every provider's configuration, budget usage and success statistics.",
			InputSchema: object(nil, nil),
		},
		call: s.status,
	})
	s.register(tool{
		spec: toolSpec{
			Name:        "lingoroute_update_provider",
			Description: "Apply a partial configuration update to one provider. Omitted fields are left unchanged.",
			InputSchema: object([]string{"name"}, map[string]any{
				"name":                 prop("string", "Provider name"),
				"enabled":              prop("boolean", ""),
				"priority":             prop("integer", "Lower values are tried first"),
				"quality_threshold":    prop("number", "Minimum accepted confidence in [0,1]"),
				"cost_per_char":        prop("number", ""),
				"daily_budget":         prop("number", "Daily spend ceiling; 0 blocks paid calls"),
				"monthly_budget":       prop("number", "Monthly spend ceiling; 0 blocks paid calls"),
				"clear_daily_budget":   prop("boolean", "Remove the daily ceiling"),
				"clear_monthly_budget": prop("boolean", "Remove the monthly ceiling"),
				"credentials":          map[string]any{"type": "array", "items": prop("string", "")},
				"endpoint":             prop("string", ""),
				"model_id":             prop("string", ""),
			}),
		},
		call: s.updateProvider,
	})
	s.register(tool{
		spec: toolSpec{
			Name:        "lingoroute_translate",
			Description: "Translate text through the provider chain and report which provider answered.",
			InputSchema: object([]string{"text", "target_lang"}, map[string]any{
				"text":        prop("string", ""),
				"target_lang": prop("string", "Target language code, e.g. en or fr"),
				"timeout_ms":  prop("integer", "Per-attempt deadline in milliseconds"),
			}),
		},
		call: s.translate,
	})
	s.register(tool{
		spec: toolSpec{
			Name:        "lingoroute_reset_stats",
			Description: "Clear the in-memory provider statistics. Budget spend is not affected.",
			InputSchema: object(nil, nil),
		},
		call: s.resetStats,
	})
	s.register(tool{
		spec: toolSpec{
			Name:        "lingoroute_cache_stats",
			Description: "Show translation cache statistics (entries, hits, misses, hit rate).",
			InputSchema: object(nil, nil),
		},
		call: s.cacheStats,
	})
}

func object(required []string, props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	p := map[string]any{"type": typ}
	if desc != "" {
		p["description"] = desc
	}
	return p
}

// decodeArgs unmarshals tool arguments. Malformed arguments are an
// invalid-params fault.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return faultf(codeInvalidParams, "invalid arguments: %v", err)
	}
	return nil
}

func (s *Server) status(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
	st, err := s.svc.GetStatus(ctx)
	if err != nil {
		return ToolResult{}, err
	}
	return textResult(formatStatus(st)), nil
}

func (s *Server) updateProvider(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args struct {
		Name string `json:"name"`
		models.ProviderUpdate
	}
	if err := decodeArgs(raw, &args); err != nil {
		return ToolResult{}, err
	}
	if args.Name == "" {
		return refusal("name is required"), nil
	}

	err := s.svc.ApplyConfigUpdate(ctx, args.Name, args.ProviderUpdate)
	var verr *configstore.ValidationError
	switch {
	case errors.As(err, &verr):
		return refusal("%s", formatValidation(verr)), nil
	case errors.Is(err, configstore.ErrNotFound):
		return refusal("Unknown provider: %s", args.Name), nil
	case err != nil:
		return ToolResult{}, err
	}

	cfg, err := s.svc.Provider(args.Name)
	if err != nil {
		return ToolResult{}, err
	}
	return textResult(formatProvider(cfg)), nil
}

func (s *Server) translate(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args struct {
		Text       string `json:"text"`
		TargetLang string `json:"target_lang"`
		TimeoutMs  int64  `json:"timeout_ms"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return ToolResult{}, err
	}
	res, err := s.svc.Translate(ctx, models.TranslationRequest{
		Text:       args.Text,
		TargetLang: args.TargetLang,
		Timeout:    time.Duration(args.TimeoutMs) * time.Millisecond,
	})
	if errors.Is(err, dispatcher.ErrInvalidRequest) {
		return refusal("%v", err), nil
	}
	if err != nil {
		return ToolResult{}, err
	}
	return textResult(formatTranslation(res)), nil
}

func (s *Server) resetStats(context.Context, json.RawMessage) (ToolResult, error) {
	s.svc.ResetStats()
	return textResult("Provider statistics reset."), nil
}

func (s *Server) cacheStats(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
	st, err := s.svc.CacheStats(ctx)
	if errors.Is(err, control.ErrCacheDisabled) {
		return textResult("Cache is not configured."), nil
	}
	if err != nil {
		return ToolResult{}, err
	}
	return textResult(formatCacheStats(st)), nil
}
