package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/dispatcher"
	"github.com/lingoroute/lingoroute/pkg/models"
)

const maxBodyBytes = 4 << 20

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: kind, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// TranslateRequest is the wire form of a translation request.
type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
	TimeoutMs  int64  `json:"timeout_ms,omitempty"`
}

func (t TranslateRequest) model() models.TranslationRequest {
	return models.TranslationRequest{
		Text:       t.Text,
		TargetLang: t.TargetLang,
		Timeout:    time.Duration(t.TimeoutMs) * time.Millisecond,
	}
}

// TranslateResponse is the wire form of a translation result.
type TranslateResponse struct {
	models.TranslationResult
	LatencyMs int64 `json:"latency_ms"`
}

func newTranslateResponse(res models.TranslationResult) TranslateResponse {
	return TranslateResponse{TranslationResult: res, LatencyMs: res.Latency.Milliseconds()}
}

// BatchRequest is the body of POST /v1/translate/batch.
type BatchRequest struct {
	Requests []TranslateRequest `json:"requests"`
}

// BatchResult is one item of a batch response. Error is set only for invalid items.
type BatchResult struct {
	Result *TranslateResponse `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var upd models.ProviderUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	err := s.svc.ApplyConfigUpdate(r.Context(), name, upd)
	var ve *configstore.ValidationError
	switch {
	case err == nil:
		cfg, _ := s.svc.Provider(name)
		writeJSON(w, http.StatusOK, cfg)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation_failed", Message: ve.Error(), Fields: ve.Fields})
	case errors.Is(err, configstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("provider %q not found", name))
	default:
		s.logger.Error("config update failed", zap.String("provider", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := s.svc.Translate(r.Context(), req.model())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newTranslateResponse(res))
}

func (s *Server) handleTranslateBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(body.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "requests is empty")
		return
	}
	if len(body.Requests) > s.opts.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("at most %d requests per batch", s.opts.MaxBatch))
		return
	}

	reqs := make([]models.TranslationRequest, len(body.Requests))
	for i, req := range body.Requests {
		reqs[i] = req.model()
	}
	items := s.svc.TranslateBatch(r.Context(), reqs)

	out := make([]BatchResult, len(items))
	for i, it := range items {
		out[i] = batchResult(it)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func batchResult(it dispatcher.BatchItem) BatchResult {
	if it.Err != nil {
		return BatchResult{Error: it.Err.Error()}
	}
	res := newTranslateResponse(it.Result)
	return BatchResult{Result: &res}
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetStats()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.CacheStats(r.Context())
	if errors.Is(err, control.ErrCacheDisabled) {
		writeError(w, http.StatusNotFound, "cache_disabled", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
