package assess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

func TestRunStage_Result(t *testing.T) {
	v, err := runStage(context.Background(), "test", time.Second, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got v=%v err=%v", v, err)
	}
}

func TestRunStage_ErrorPassthrough(t *testing.T) {
	want := errors.New("provider failure")
	_, err := runStage(context.Background(), "test", time.Second, func(ctx context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want passthrough", err)
	}
}

func TestRunStage_DeadlineProducesTimeoutKind(t *testing.T) {
	// The fn ignores its context entirely; the race against the deadline
	// must still cut it off.
	_, err := runStage(context.Background(), "vision", 20*time.Millisecond, func(ctx context.Context) (any, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})
	assertKind(t, err, assessment.KindAITimeout, 504)
}

func TestRunStage_CtxAwareFnTimeoutMapped(t *testing.T) {
	// A well-behaved fn that returns ctx.Err() gets the same taxonomy kind.
	_, err := runStage(context.Background(), "vision", 20*time.Millisecond, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assertKind(t, err, assessment.KindAITimeout, 504)
}

func TestRunStage_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := runStage(ctx, "vision", time.Second, func(sctx context.Context) (any, error) {
		<-sctx.Done()
		return nil, sctx.Err()
	})
	if assessment.IsKind(err, assessment.KindAITimeout) {
		t.Fatal("caller cancellation must not be reported as a stage timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
