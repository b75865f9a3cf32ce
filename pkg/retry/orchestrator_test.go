package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/queryscope/queryscope-engine/pkg/apperrors"
	"github.com/queryscope/queryscope-engine/pkg/suggest"
)

func testConfig() *Config {
	return &Config{
		MaxRetries:            3,
		BaseDelay:             time.Millisecond,
		MaxDelay:              10 * time.Millisecond,
		BackoffFactor:         2.0,
		RefreshOnSchemaError:  true,
		RefreshOnUnknownError: true,
	}
}

type fakeSuggester struct {
	resp  *suggest.Response
	calls int
	panic bool
}

func (f *fakeSuggester) ForError(errorText, sqlText string, tables []string) *suggest.Response {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.resp
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("expected MaxDelay=30s, got %v", cfg.MaxDelay)
	}
	if cfg.BackoffFactor != 2.0 {
		t.Errorf("expected BackoffFactor=2.0, got %f", cfg.BackoffFactor)
	}
	if !cfg.RefreshOnSchemaError || !cfg.RefreshOnUnknownError {
		t.Error("expected metadata refresh enabled by default")
	}
}

func TestDelay(t *testing.T) {
	o := New(&Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2.0, MaxRetries: 3}, nil, nil)

	if got := o.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, expected BaseDelay", got)
	}

	prev := time.Duration(0)
	for n := 0; n < 10; n++ {
		d := o.Delay(n)
		if d < prev {
			t.Errorf("Delay(%d) = %v decreased from %v", n, d, prev)
		}
		if d > 30*time.Second {
			t.Errorf("Delay(%d) = %v exceeds MaxDelay", n, d)
		}
		prev = d
	}

	if got := o.Delay(2); got != 4*time.Second {
		t.Errorf("Delay(2) = %v, expected 4s", got)
	}
}

func TestShouldRetry(t *testing.T) {
	o := New(testConfig(), nil, nil)

	tests := []struct {
		name     string
		class    apperrors.Classification
		attempt  int
		expected bool
	}{
		{"schema error retries", apperrors.SchemaError, 0, true},
		{"connection error retries", apperrors.ConnectionError, 0, true},
		{"timeout retries", apperrors.TimeoutError, 1, true},
		{"unknown retries", apperrors.UnknownError, 2, true},
		{"permission never retries", apperrors.PermissionError, 0, false},
		{"syntax never retries", apperrors.SyntaxError, 0, false},
		{"attempts exhausted", apperrors.SchemaError, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.ShouldRetry(tt.class, tt.attempt); got != tt.expected {
				t.Errorf("ShouldRetry(%s, %d) = %v, expected %v", tt.class, tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestShouldRefreshMetadata(t *testing.T) {
	o := New(testConfig(), nil, nil)

	if !o.ShouldRefreshMetadata(apperrors.SchemaError, 1) {
		t.Error("expected refresh for schema error on first attempt")
	}
	if !o.ShouldRefreshMetadata(apperrors.UnknownError, 1) {
		t.Error("expected refresh for unknown error on first attempt")
	}
	if o.ShouldRefreshMetadata(apperrors.SchemaError, 2) {
		t.Error("refresh must only happen on the first retry")
	}
	if o.ShouldRefreshMetadata(apperrors.ConnectionError, 1) {
		t.Error("connection errors must not trigger a refresh")
	}

	cfg := testConfig()
	cfg.RefreshOnSchemaError = false
	o = New(cfg, nil, nil)
	if o.ShouldRefreshMetadata(apperrors.SchemaError, 1) {
		t.Error("refresh disabled by config must be honored")
	}
}

func TestRun_FirstTrySuccess(t *testing.T) {
	o := New(testConfig(), nil, nil)

	result, log, err := Run(context.Background(), o, func(ctx context.Context) (string, error) {
		return "rows", nil
	}, nil, RunContext{})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "rows" {
		t.Errorf("expected 'rows', got %q", result)
	}
	if len(log) != 0 {
		t.Errorf("first-try success must not be logged, got %d entries", len(log))
	}
}

func TestRun_PermissionErrorNoRetry(t *testing.T) {
	o := New(testConfig(), nil, nil)

	calls := 0
	_, log, err := Run(context.Background(), o, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("permission denied for table students")
	}, nil, RunContext{SQL: "SELECT * FROM students"})

	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(log))
	}
	if log[0].Status != statusFailed {
		t.Errorf("expected failed entry, got %s", log[0].Status)
	}
	if log[0].NextDelaySeconds != nil {
		t.Error("non-retried failure must not carry a next delay")
	}

	qe, ok := apperrors.AsQueryError(err)
	if !ok {
		t.Fatalf("expected *apperrors.QueryError, got %T", err)
	}
	if qe.Classification != apperrors.PermissionError {
		t.Errorf("expected permission classification, got %s", qe.Classification)
	}
	if qe.Suggestions != nil {
		t.Error("permission errors must not carry suggestions")
	}
}

func TestRun_SchemaErrorRecoversAfterRefresh(t *testing.T) {
	o := New(testConfig(), nil, nil)

	refreshes := 0
	calls := 0
	result, log, err := Run(context.Background(), o, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("no such table: studnets")
		}
		return "ok", nil
	}, func(ctx context.Context) error {
		refreshes++
		return nil
	}, RunContext{SQL: "SELECT * FROM studnets"})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
	if refreshes != 1 {
		t.Errorf("expected exactly 1 metadata refresh, got %d", refreshes)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(log))
	}
	if !log[0].MetadataRefreshed {
		t.Error("first failed entry must record the refresh")
	}
	if log[1].MetadataRefreshed {
		t.Error("second failed entry must not record a refresh")
	}
	if log[2].Status != statusSuccess {
		t.Errorf("expected final success entry, got %s", log[2].Status)
	}
	if log[0].NextDelaySeconds == nil || log[1].NextDelaySeconds == nil {
		t.Error("retried failures must record the backoff delay")
	}
}

func TestRun_RefreshFailureDoesNotAbort(t *testing.T) {
	o := New(testConfig(), nil, nil)

	calls := 0
	result, log, err := Run(context.Background(), o, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("no such table: x")
		}
		return "ok", nil
	}, func(ctx context.Context) error {
		return errors.New("introspection unavailable")
	}, RunContext{})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
	if log[0].MetadataRefreshed {
		t.Error("failed refresh must not be recorded as refreshed")
	}
	if log[0].RefreshError == "" {
		t.Error("refresh failure must be recorded in the log entry")
	}
}

func TestRun_ExhaustedSchemaErrorCarriesSuggestions(t *testing.T) {
	sugg := &fakeSuggester{resp: &suggest.Response{
		Suggestions: map[string][]suggest.Suggestion{
			"studnets": {{TableName: "Students", Similarity: 0.93, Reason: "93% match"}},
		},
		Message: "Suggestions: ...",
	}}
	o := New(testConfig(), sugg, nil)

	_, log, err := Run(context.Background(), o, func(ctx context.Context) (int, error) {
		return 0, errors.New("no such table: studnets")
	}, func(ctx context.Context) error { return nil }, RunContext{
		SQL:    "SELECT * FROM studnets",
		Tables: []string{"Students", "Courses"},
	})

	if sugg.calls != 1 {
		t.Errorf("expected 1 suggester call, got %d", sugg.calls)
	}
	qe, ok := apperrors.AsQueryError(err)
	if !ok {
		t.Fatalf("expected *apperrors.QueryError, got %T", err)
	}
	if qe.Suggestions == nil {
		t.Fatal("expected suggestions on the terminal error")
	}
	if log[len(log)-1].Suggestions == nil {
		t.Error("expected suggestions on the last log entry")
	}
	// 1 initial + 3 retries, all failed.
	if len(log) != 4 {
		t.Errorf("expected 4 log entries, got %d", len(log))
	}
}

func TestRun_SuggesterPanicDoesNotMaskError(t *testing.T) {
	sugg := &fakeSuggester{panic: true}
	o := New(testConfig(), sugg, nil)

	_, _, err := Run(context.Background(), o, func(ctx context.Context) (int, error) {
		return 0, errors.New("no such table: x")
	}, nil, RunContext{SQL: "SELECT 1"})

	qe, ok := apperrors.AsQueryError(err)
	if !ok {
		t.Fatalf("expected *apperrors.QueryError, got %T", err)
	}
	if qe.Classification != apperrors.SchemaError {
		t.Errorf("expected schema classification, got %s", qe.Classification)
	}
	if qe.Suggestions != nil {
		t.Error("panicked suggester must not attach suggestions")
	}
}

func TestRun_ContextCancellationDuringBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.BaseDelay = 200 * time.Millisecond
	cfg.MaxDelay = time.Second
	o := New(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := Run(ctx, o, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection lost")
	}, nil, RunContext{})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}

func TestRun_ConnectionErrorNeverRefreshes(t *testing.T) {
	o := New(testConfig(), nil, nil)

	refreshes := 0
	_, log, _ := Run(context.Background(), o, func(ctx context.Context) (int, error) {
		return 0, errors.New("connection lost")
	}, func(ctx context.Context) error {
		refreshes++
		return nil
	}, RunContext{})

	if refreshes != 0 {
		t.Errorf("connection errors must not refresh metadata, got %d refreshes", refreshes)
	}
	for _, entry := range log {
		if entry.MetadataRefreshed {
			t.Error("no entry should record a refresh")
		}
	}
}
