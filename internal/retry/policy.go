// Package retry classifies SQL Server driver errors into transient, schema,
// and fatal kinds, and wraps operations in bounded exponential backoff
// (spec.md §4.1, §7).
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
)

// Kind is the error taxonomy of spec.md §7 (excluding Local-precondition and
// Structural, which are stamped by higher layers, not by this package).
type Kind int

const (
	KindFatal Kind = iota
	KindTransient
	KindSchema
)

var transientNumbers = map[int32]bool{
	40613: true, 40197: true, 40501: true,
	10928: true, 10929: true, 233: true, 64: true,
}

var schemaNumbers = map[int32]bool{
	207: true, 208: true, 213: true, 515: true, 547: true,
}

var schemaSubstrings = []string{
	"invalid column", "invalid object name", "column",
	"does not exist", "identity_insert", "generated always",
}

// Classify inspects err and returns its retry-policy kind per spec.md §4.1.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var mssqlErr mssql.Error
	if errors.As(err, &mssqlErr) {
		if transientNumbers[mssqlErr.Number] {
			return KindTransient
		}
		if schemaNumbers[mssqlErr.Number] {
			return KindSchema
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "i/o timeout") {
		return KindTransient
	}
	for _, sub := range schemaSubstrings {
		if strings.Contains(msg, sub) {
			return KindSchema
		}
	}
	return KindFatal
}

// Policy wraps database operations with spec.md §4.1's bounded exponential
// backoff: retries happen only for transient errors, up to three times,
// sleeping 2, 4, then 8 seconds between attempts. Schema and fatal errors
// propagate on first occurrence.
type Policy struct {
	MaxRetries int           // default 3
	BaseDelay  time.Duration // default 1 second (doubled per attempt: 2,4,8s)
	Sleep      func(time.Duration) // overridable for tests
}

func NewPolicy() *Policy {
	return &Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Sleep:      time.Sleep,
	}
}

// Do runs op, retrying transient failures per the policy. It returns the
// last error seen (transient, schema, or fatal) if op never succeeds.
// Cancellation via ctx is observed between attempts, not mid-operation —
// op itself is responsible for honoring ctx during its own blocking I/O.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if Classify(lastErr) != KindTransient {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}
		delay := p.BaseDelay << uint(attempt+1) // 2,4,8 seconds when BaseDelay=1s
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.Sleep(delay)
	}
	return lastErr
}
