package util

import (
	"context"
	"errors"
	"testing"
)

func TestRetryErrWithContext(t *testing.T) {
	errTransient := errors.New("transient")

	tests := []struct {
		name      string
		maxTries  int
		failFirst int
		wantErr   error
		wantCalls int
	}{
		{"immediate success", 3, 0, nil, 1},
		{"success after retries", 3, 2, nil, 3},
		{"persistent failure", 3, 3, errTransient, 3},
		{"zero tries defaults to one", 0, 0, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryErrWithContext(context.Background(), tt.maxTries, func(ctx context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return errTransient
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryErrWithContextCanceledBeforeFirstTry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("fn ran %d times after cancellation", calls)
	}
}

func TestRetryErrWithContextStopsOnContextError(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 5, func(ctx context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Fatalf("context error was retried: %d calls", calls)
	}
}
