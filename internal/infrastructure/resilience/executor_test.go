package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestStateObserverSeesBreakerTrip(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     1,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, WithStateObserver(func(op string, from, to gobreaker.State) {
		transitions = append(transitions, op+":"+from.String()+"->"+to.String())
	}))

	_ = exec.Execute(context.Background(), "analyze", func(context.Context) error {
		return errors.New("down")
	}, nil)

	if len(transitions) != 1 || transitions[0] != "analyze:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	if exec.State("analyze") != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", exec.State("analyze"))
	}
	if exec.State("unused") != gobreaker.StateClosed {
		t.Fatalf("expected closed state for unused operation")
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 2, RetryInitialBackoff: time.Millisecond})
	calls := 0
	got, err := Call(context.Background(), exec, "op", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "value", nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil || got != "value" {
		t.Fatalf("expected value after retry, got %q %v", got, err)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before call, got err=%v called=%v", err, called)
	}
}

func TestExecuteHonoursClassificationAttemptCap(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
	})

	attempts := 0
	errMalformed := errors.New("malformed")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errMalformed
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, MaxAttempts: 2}
	})
	if !errors.Is(err, errMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteUsesOperationOverride(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
		Overrides: map[string]Override{
			"s3": {RetryMaxAttempts: 3},
		},
	})

	retryAll := func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	count := func(op string) int {
		attempts := 0
		_ = exec.Execute(context.Background(), op, func(context.Context) error {
			attempts++
			return errors.New("unavailable")
		}, retryAll)
		return attempts
	}

	if got := count("s3.put"); got != 3 {
		t.Fatalf("expected family override to allow 3 attempts, got %d", got)
	}
	if got := count("nats.publish"); got != 1 {
		t.Fatalf("expected base policy for nats.publish, got %d attempts", got)
	}
}

func TestConfigForMergesFamilyThenOperation(t *testing.T) {
	base := Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  10,
		Overrides: map[string]Override{
			"ollama":         {RetryMaxAttempts: 2, RetryMaxBackoff: 5 * time.Second},
			"ollama.analyze": {RetryInitialBackoff: time.Second, BreakerMinRequests: 3},
			"nats":           {BreakerDisabled: true},
		},
	}

	got := base.For("ollama.analyze")
	if got.RetryMaxAttempts != 2 || got.RetryInitialBackoff != time.Second || got.RetryMaxBackoff != 5*time.Second {
		t.Fatalf("unexpected retry policy %+v", got)
	}
	if !got.BreakerEnabled || got.BreakerMinRequests != 3 {
		t.Fatalf("unexpected breaker policy %+v", got)
	}
	if got.Overrides != nil {
		t.Fatalf("resolved policy must not carry overrides")
	}

	if base.For("nats.publish").BreakerEnabled {
		t.Fatalf("expected breaker disabled for nats family")
	}

	other := base.For("s3.get")
	if other.RetryMaxAttempts != 3 || other.BreakerMinRequests != 10 {
		t.Fatalf("expected base policy for s3.get, got %+v", other)
	}
}

func TestBreakersTripPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     1,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
		Overrides: map[string]Override{
			"ollama.analyze": {BreakerMinRequests: 1},
		},
	})

	fail := func(context.Context) error { return errors.New("down") }
	_ = exec.Execute(context.Background(), "ollama.analyze", fail, nil)
	_ = exec.Execute(context.Background(), "s3.put", fail, nil)

	if exec.State("ollama.analyze") != gobreaker.StateOpen {
		t.Fatalf("expected ollama.analyze open, got %s", exec.State("ollama.analyze"))
	}
	if exec.State("s3.put") != gobreaker.StateClosed {
		t.Fatalf("expected s3.put closed, got %s", exec.State("s3.put"))
	}
	if exec.Policy("ollama.analyze").BreakerMinRequests != 1 {
		t.Fatalf("expected override visible through Policy")
	}
}
