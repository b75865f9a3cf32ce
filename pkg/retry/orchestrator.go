// Package retry drives query execution against a live database: it
// classifies failures, decides whether refreshing the learned schema
// vocabulary might help, applies exponential backoff between attempts, and
// on terminal schema failures enriches the raised error with ranked
// correction suggestions.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/apperrors"
	"github.com/queryscope/queryscope-engine/pkg/suggest"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries            int
	BaseDelay             time.Duration
	MaxDelay              time.Duration
	BackoffFactor         float64
	RefreshOnSchemaError  bool
	RefreshOnUnknownError bool
}

// DefaultConfig returns the defaults for database query execution:
// 3 retries, 1s initial delay doubling up to 30s, metadata refresh enabled
// for schema and unknown failures.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:            3,
		BaseDelay:             time.Second,
		MaxDelay:              30 * time.Second,
		BackoffFactor:         2.0,
		RefreshOnSchemaError:  true,
		RefreshOnUnknownError: true,
	}
}

// Attempt is one entry in the retry log returned to the caller. The log is
// scoped to a single Run call and has no life beyond it.
type Attempt struct {
	Number            int                      `json:"attempt"`
	Status            string                   `json:"status"` // "success" or "failed"
	Classification    apperrors.Classification `json:"classification,omitempty"`
	Message           string                   `json:"message,omitempty"`
	DurationMs        int64                    `json:"duration_ms"`
	MetadataRefreshed bool                     `json:"metadata_refreshed,omitempty"`
	RefreshDurationMs int64                    `json:"refresh_duration_ms,omitempty"`
	RefreshError      string                   `json:"refresh_error,omitempty"`
	NextDelaySeconds  *float64                 `json:"next_delay_seconds,omitempty"`
	Suggestions       *suggest.Response        `json:"suggestions,omitempty"`
}

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// RefreshFunc re-derives the schema vocabulary from the live database. Its
// failures are logged but never abort the retry sequence.
type RefreshFunc func(ctx context.Context) error

// Suggester produces correction suggestions for a terminal schema failure.
// *suggest.Engine satisfies this; the indirection keeps tests independent.
type Suggester interface {
	ForError(errorText, sqlText string, availableTables []string) *suggest.Response
}

// RunContext carries the query-scoped inputs the orchestrator needs for
// diagnosis on terminal failure.
type RunContext struct {
	SQL    string   // the SQL text being executed
	Tables []string // tables known to the current vocabulary snapshot
}

// Orchestrator executes caller-supplied operations with classification-aware
// retries. It holds no per-query state; one instance serves many Run calls.
type Orchestrator struct {
	cfg       *Config
	suggester Suggester
	logger    *zap.Logger
}

// New creates an Orchestrator. A nil config takes DefaultConfig; a nil
// suggester disables terminal-failure enrichment; a nil logger is a no-op.
func New(cfg *Config, suggester Suggester, logger *zap.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, suggester: suggester, logger: logger}
}

// Delay returns the backoff before retry number attempt (0-based):
// min(base * factor^attempt, max). No jitter is applied so the schedule is
// reproducible.
func (o *Orchestrator) Delay(attempt int) time.Duration {
	d := float64(o.cfg.BaseDelay) * math.Pow(o.cfg.BackoffFactor, float64(attempt))
	if d > float64(o.cfg.MaxDelay) {
		return o.cfg.MaxDelay
	}
	return time.Duration(d)
}

// ShouldRetry reports whether another attempt is worthwhile. Permission and
// syntax failures never self-heal, so they are surfaced immediately.
func (o *Orchestrator) ShouldRetry(c apperrors.Classification, attempt int) bool {
	if attempt >= o.cfg.MaxRetries {
		return false
	}
	switch c {
	case apperrors.PermissionError, apperrors.SyntaxError:
		return false
	}
	return true
}

// ShouldRefreshMetadata reports whether the schema vocabulary should be
// re-derived before the next attempt. Only schema and unknown failures can
// be explained by a stale vocabulary, and only the first retry refreshes:
// repeating the refresh on later attempts would not change anything.
// attemptNumber is 1-based.
func (o *Orchestrator) ShouldRefreshMetadata(c apperrors.Classification, attemptNumber int) bool {
	if attemptNumber > 1 {
		return false
	}
	switch c {
	case apperrors.SchemaError:
		return o.cfg.RefreshOnSchemaError
	case apperrors.UnknownError:
		return o.cfg.RefreshOnUnknownError
	}
	return false
}

// Run executes operation with classification-aware retries. On success it
// returns the result and the attempt log (empty when the first try
// succeeds). On terminal failure it returns a *apperrors.QueryError carrying
// the last classification and, for exhausted schema errors, ranked
// correction suggestions. Attempts are strictly sequential; the backoff
// sleep respects context cancellation.
func Run[T any](ctx context.Context, o *Orchestrator, operation func(context.Context) (T, error), refresh RefreshFunc, rc RunContext) (T, []Attempt, error) {
	var zero T
	var log []Attempt
	var lastErr error
	var lastClass apperrors.Classification

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		start := time.Now()
		result, err := operation(ctx)
		elapsed := time.Since(start)

		if err == nil {
			// First-try success stays out of the log to avoid noise.
			if attempt > 0 {
				log = append(log, Attempt{
					Number:     attempt + 1,
					Status:     statusSuccess,
					DurationMs: elapsed.Milliseconds(),
				})
			}
			return result, log, nil
		}

		lastErr = err
		lastClass = apperrors.Classify(err)
		entry := Attempt{
			Number:         attempt + 1,
			Status:         statusFailed,
			Classification: lastClass,
			Message:        err.Error(),
			DurationMs:     elapsed.Milliseconds(),
		}

		o.logger.Warn("query attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("classification", string(lastClass)),
			zap.Error(err))

		if !o.ShouldRetry(lastClass, attempt) {
			log = append(log, entry)
			break
		}

		if o.ShouldRefreshMetadata(lastClass, attempt+1) && refresh != nil {
			refreshStart := time.Now()
			if rerr := refresh(ctx); rerr != nil {
				entry.RefreshError = rerr.Error()
				o.logger.Warn("metadata refresh failed", zap.Error(rerr))
			} else {
				entry.MetadataRefreshed = true
			}
			entry.RefreshDurationMs = time.Since(refreshStart).Milliseconds()
		}

		delay := o.Delay(attempt)
		seconds := delay.Seconds()
		entry.NextDelaySeconds = &seconds
		log = append(log, entry)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, log, ctx.Err()
		}
	}

	qe := &apperrors.QueryError{
		Classification: lastClass,
		SQL:            rc.SQL,
		Err:            lastErr,
	}

	if lastClass == apperrors.SchemaError && o.suggester != nil {
		if resp := o.suggestSafely(lastErr.Error(), rc); !resp.Empty() {
			qe.Suggestions = resp
			if len(log) > 0 {
				log[len(log)-1].Suggestions = resp
			}
		}
	}

	return zero, log, qe
}

// suggestSafely shields the retry path from the suggestion engine: a
// diagnostic step must never mask the original error.
func (o *Orchestrator) suggestSafely(errorText string, rc RunContext) (resp *suggest.Response) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("suggestion engine panicked", zap.String("panic", fmt.Sprint(r)))
			resp = &suggest.Response{}
		}
	}()
	return o.suggester.ForError(errorText, rc.SQL, rc.Tables)
}
