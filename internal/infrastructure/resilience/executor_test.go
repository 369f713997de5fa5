package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testPolicy() Policy {
	p := DefaultPolicy()
	p.BreakerEnabled = false
	p.RetryInitialBackoff = time.Millisecond
	p.RetryMaxBackoff = 2 * time.Millisecond
	return p
}

func testExecutor(p Policy) *Executor {
	return NewExecutor(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	e := testExecutor(testPolicy())
	attempts := 0

	err := e.Execute(context.Background(), "test.flaky", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) Verdict {
		return Verdict{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	e := testExecutor(testPolicy())
	attempts := 0
	cause := errors.New("still broken")

	err := e.Execute(context.Background(), "test.broken", func(context.Context) error {
		attempts++
		return cause
	}, func(error) Verdict {
		return Verdict{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected %d attempts, got %d", 3, attempts)
	}
}

func TestExecuteDoesNotRetryTerminalErrors(t *testing.T) {
	e := testExecutor(testPolicy())
	attempts := 0

	err := e.Execute(context.Background(), "test.terminal", func(context.Context) error {
		attempts++
		return errors.New("bad input")
	}, func(error) Verdict {
		return Verdict{Retryable: false, RecordFailure: false}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("terminal error must not be retried, got %d attempts", attempts)
	}
}

func TestExecuteOpensBreakerAfterRepeatedFailures(t *testing.T) {
	p := testPolicy()
	p.BreakerEnabled = true
	p.BreakerMinRequests = 3
	p.RetryMaxAttempts = 1
	e := testExecutor(p)

	fail := func(context.Context) error { return errors.New("down") }
	record := func(error) Verdict { return Verdict{Retryable: false, RecordFailure: true} }

	for i := 0; i < 3; i++ {
		_ = e.Execute(context.Background(), "test.breaker", fail, record)
	}

	calls := 0
	err := e.Execute(context.Background(), "test.breaker", func(context.Context) error {
		calls++
		return nil
	}, record)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("open circuit must short-circuit the call, got %d calls", calls)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	e := testExecutor(testPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := e.Execute(ctx, "test.cancel", func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	}, func(error) Verdict {
		return Verdict{Retryable: true, RecordFailure: true}
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop the retry loop, got %d attempts", attempts)
	}
}
