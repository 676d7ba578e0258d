package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/provider"
)

// state is one step of a single request's walk through the candidates.
type state int

const (
	stateSelect state = iota
	stateCheckBudget
	stateInvoke
	stateEvaluate
	stateRejectNext
	stateAccept
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateSelect:
		return "select"
	case stateCheckBudget:
		return "check_budget"
	case stateInvoke:
		return "invoke"
	case stateEvaluate:
		return "evaluate"
	case stateRejectNext:
		return "reject_next"
	case stateAccept:
		return "accept"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Error kinds recorded for attempts that never reached a provider.
const (
	kindBudget  = "budget_exceeded"
	kindAdapter = "adapter_unavailable"
)

// dispatch holds the state of one request. It is used by one goroutine.
type dispatch struct {
	d          *Dispatcher
	req        models.TranslationRequest
	reqID      string
	chars      int
	timeout    time.Duration
	start      time.Time
	candidates []models.ProviderConfig
	logger     *zap.Logger

	idx         int
	cur         models.ProviderConfig
	projected   float64
	reservation *ledger.Reservation
	out         provider.Output
	latency     time.Duration
	attempts    []models.Attempt
}

func (r *dispatch) run(ctx context.Context) models.TranslationResult {
	st := stateSelect
	for {
		switch st {
		case stateSelect:
			st = r.selectNext(ctx)
		case stateCheckBudget:
			st = r.checkBudget(ctx)
		case stateInvoke:
			st = r.invoke(ctx)
		case stateEvaluate:
			st = r.evaluate(ctx)
		case stateRejectNext:
			r.idx++
			st = stateSelect
		case stateAccept:
			return r.accept(ctx)
		case stateExhausted:
			return r.exhausted(ctx)
		}
	}
}

func (r *dispatch) selectNext(ctx context.Context) state {
	if ctx.Err() != nil || r.idx >= len(r.candidates) {
		return stateExhausted
	}
	r.cur = r.candidates[r.idx]
	r.projected = float64(r.chars) * r.cur.CostPerChar
	r.reservation = nil
	r.out = provider.Output{}
	r.latency = 0
	return stateCheckBudget
}

func (r *dispatch) checkBudget(ctx context.Context) state {
	l := r.d.cfg.Ledger
	if l == nil {
		return stateInvoke
	}
	budget := r.cur.Budget()
	if r.d.cfg.StrictBudget {
		res, ok := l.Reserve(r.cur.Name, r.projected, budget)
		if ok {
			r.reservation = res
			return stateInvoke
		}
	} else if l.IsEligible(r.cur.Name, r.projected, budget) {
		return stateInvoke
	}

	r.logger.Debug("provider over budget", zap.String("provider", r.cur.Name), zap.Float64("projected", r.projected))
	r.addAttempt(ctx, models.Attempt{
		Provider:  r.cur.Name,
		Outcome:   models.OutcomeSkipped,
		ErrorKind: kindBudget,
	})
	return stateRejectNext
}

func (r *dispatch) invoke(ctx context.Context) state {
	adapter, err := r.d.cfg.Adapters.Get(r.cur)
	if err != nil {
		r.release()
		r.logger.Error("adapter unavailable", zap.String("provider", r.cur.Name), zap.Error(err))
		r.addAttempt(ctx, models.Attempt{Provider: r.cur.Name, Outcome: models.OutcomeFailed, ErrorKind: kindAdapter})
		return stateRejectNext
	}

	// An attempt in flight is bounded by its timeout only. Caller
	// cancellation is observed between attempts in selectNext.
	actx, cancel := context.WithoutCancel(ctx), context.CancelFunc(func() {})
	if r.timeout > 0 {
		actx, cancel = context.WithTimeout(actx, r.timeout)
	}
	began := time.Now()
	out, err := adapter.Translate(actx, provider.Input{Text: r.req.Text, TargetLang: r.req.TargetLang})
	cancel()
	r.latency = time.Since(began)

	if err != nil {
		r.release()
		kind := string(provider.KindOf(err))
		if kind == "" {
			kind = string(provider.KindNetwork)
		}
		r.logger.Warn("provider failed",
			zap.String("provider", r.cur.Name),
			zap.String("kind", kind),
			zap.Duration("latency", r.latency),
			zap.Error(err),
		)
		r.d.cfg.Stats.Record(r.cur.Name, false, r.chars, 0, r.latency)
		r.addAttempt(ctx, models.Attempt{
			Provider:  r.cur.Name,
			Outcome:   models.OutcomeFailed,
			ErrorKind: kind,
			Latency:   r.latency,
		})
		return stateRejectNext
	}
	r.out = out
	return stateEvaluate
}

func (r *dispatch) evaluate(ctx context.Context) state {
	if r.out.Confidence >= r.cur.QualityThreshold {
		return stateAccept
	}

	var charged float64
	if r.d.cfg.ChargeRejected {
		charged = r.projected
		r.charge(ctx, charged)
	} else {
		r.release()
	}
	r.logger.Info("translation rejected",
		zap.String("provider", r.cur.Name),
		zap.Float64("confidence", r.out.Confidence),
		zap.Float64("threshold", r.cur.QualityThreshold),
	)
	r.d.cfg.Stats.Record(r.cur.Name, false, r.chars, charged, r.latency)
	r.addAttempt(ctx, models.Attempt{
		Provider:   r.cur.Name,
		Outcome:    models.OutcomeRejected,
		Confidence: r.out.Confidence,
		Cost:       charged,
		Latency:    r.latency,
	})
	return stateRejectNext
}

func (r *dispatch) accept(ctx context.Context) models.TranslationResult {
	cost := r.projected
	r.charge(ctx, cost)
	r.d.cfg.Stats.Record(r.cur.Name, true, r.chars, cost, r.latency)
	r.addAttempt(ctx, models.Attempt{
		Provider:   r.cur.Name,
		Outcome:    models.OutcomeAccepted,
		Confidence: r.out.Confidence,
		Cost:       cost,
		Latency:    r.latency,
	})

	if c := r.d.cfg.Cache; c != nil {
		err := c.Put(context.WithoutCancel(ctx), r.req.Text, models.CacheEntry{
			TargetLang: r.req.TargetLang,
			Provider:   r.cur.Name,
			Translated: r.out.Text,
			Confidence: r.out.Confidence,
		})
		if err != nil {
			r.logger.Warn("cache put failed", zap.Error(err))
		}
	}
	if l := r.d.cfg.Ledger; l != nil {
		u := l.UsageRate(r.cur.Name, r.cur.Budget())
		r.d.cfg.Stats.Metrics().SetBudgetUsage(r.cur.Name, u.DailyRate, u.MonthlyRate)
	}
	r.d.cfg.Stats.Metrics().ObserveDispatch("accepted")

	return models.TranslationResult{
		TranslatedText:  r.out.Text,
		ConfidenceScore: r.out.Confidence,
		ProviderName:    r.cur.Name,
		Cost:            cost,
		Latency:         time.Since(r.start),
		Timestamp:       time.Now(),
		RequestID:       r.reqID,
		Attempts:        r.attempts,
	}
}

func (r *dispatch) exhausted(ctx context.Context) models.TranslationResult {
	fields := []zap.Field{zap.Int("candidates", len(r.candidates)), zap.Int("attempts", len(r.attempts))}
	if err := ctx.Err(); err != nil {
		fields = append(fields, zap.NamedError("cancelled", err))
	}
	r.logger.Warn("all providers exhausted", fields...)
	r.d.cfg.Stats.Metrics().ObserveDispatch("degraded")

	return models.TranslationResult{
		TranslatedText:  r.req.Text,
		ConfidenceScore: 0,
		Latency:         time.Since(r.start),
		Timestamp:       time.Now(),
		Degraded:        true,
		RequestID:       r.reqID,
		Attempts:        r.attempts,
	}
}

// charge records cost against the current provider. The write is detached
// from ctx so a cancelled caller cannot drop cost for a call that happened.
func (r *dispatch) charge(ctx context.Context, cost float64) {
	l := r.d.cfg.Ledger
	if l == nil {
		return
	}
	wctx := context.WithoutCancel(ctx)
	var err error
	if r.reservation != nil {
		err = r.reservation.Commit(wctx, cost)
		r.reservation = nil
	} else {
		err = l.Record(wctx, r.cur.Name, cost)
	}
	if err != nil && !errors.Is(err, ledger.ErrNegativeCost) {
		r.logger.Error("ledger record failed", zap.String("provider", r.cur.Name), zap.Error(err))
	}
}

func (r *dispatch) release() {
	if r.reservation != nil {
		r.reservation.Release()
		r.reservation = nil
	}
}

func (r *dispatch) addAttempt(ctx context.Context, a models.Attempt) {
	r.attempts = append(r.attempts, a)
	if r.d.cfg.Audit == nil {
		return
	}
	err := r.d.cfg.Audit.Log(context.WithoutCancel(ctx), models.AuditEntry{
		RequestID:  r.reqID,
		Provider:   a.Provider,
		TargetLang: r.req.TargetLang,
		Outcome:    a.Outcome,
		ErrorKind:  a.ErrorKind,
		Confidence: a.Confidence,
		Cost:       a.Cost,
		Chars:      r.chars,
		LatencyMs:  a.Latency.Milliseconds(),
	})
	if err != nil {
		r.logger.Warn("audit log failed", zap.Error(err))
	}
}
