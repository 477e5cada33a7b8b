package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/retry"
)

func TestExecute(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		attempts  int
		failFirst int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first time", 3, 0, 1, false},
		{"succeeds after retry", 3, 2, 3, false},
		{"exhausts attempts", 2, 5, 2, true},
		{"single attempt", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := retry.NewPolicy(tt.attempts, time.Millisecond)
			err := p.Execute(context.Background(), time.Second, func(ctx context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return boom
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("error does not wrap cause: %v", err)
			}
		})
	}
}

func TestExecuteAttemptTimeout(t *testing.T) {
	p := retry.NewPolicy(1, 0)
	err := p.Execute(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := retry.NewPolicy(5, time.Hour)
	err := p.Execute(ctx, 0, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
