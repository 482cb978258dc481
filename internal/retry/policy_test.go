package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bisibesi/tablesync/internal/retry"
)

func TestClassify_MessageSubstrings(t *testing.T) {
	cases := []struct {
		msg  string
		want retry.Kind
	}{
		{"Invalid column name 'Foo'.", retry.KindSchema},
		{"Invalid object name 'dbo.Missing'.", retry.KindSchema},
		{"Cannot insert explicit value for a column when IDENTITY_INSERT is set to OFF", retry.KindSchema},
		{"Cannot update GENERATED ALWAYS column", retry.KindSchema},
		{"connection reset by peer", retry.KindTransient},
		{"read tcp: i/o timeout", retry.KindTransient},
		{"disk full", retry.KindFatal},
	}
	for _, c := range cases {
		got := retry.Classify(errors.New(c.msg))
		if got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestClassify_ContextDeadline(t *testing.T) {
	if retry.Classify(context.DeadlineExceeded) != retry.KindTransient {
		t.Error("context.DeadlineExceeded should classify as transient")
	}
}

func TestPolicy_RetriesTransientThenSucceeds(t *testing.T) {
	p := retry.NewPolicy()
	var slept []time.Duration
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(slept) != 2 {
		t.Errorf("expected 2 sleeps before the third attempt, got %d", len(slept))
	}
}

func TestPolicy_ExhaustsRetryBudget(t *testing.T) {
	p := retry.NewPolicy()
	p.Sleep = func(time.Duration) {}

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("timeout expired")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// retry_budget + 1 = 4 total attempts, per spec.md's retry-discipline invariant.
	if attempts != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", attempts)
	}
}

func TestPolicy_SchemaErrorNeverRetried(t *testing.T) {
	p := retry.NewPolicy()
	p.Sleep = func(time.Duration) { t.Error("should not sleep for a schema error") }

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("Invalid column name 'ghost'")
	})
	if err == nil {
		t.Fatal("expected schema error to propagate")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a schema error, got %d", attempts)
	}
}
