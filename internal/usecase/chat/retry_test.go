package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

func TestRetryGenerator_FirstTrySucceeds(t *testing.T) {
	inner := &mockGenerator{}
	rg := NewRetryGenerator(inner, "m", 3, time.Millisecond, zap.NewNop())

	result, err := rg.Generate(context.Background(), []prompt.Message{{Role: domain.RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "generated answer" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryGenerator_TransientRecovers(t *testing.T) {
	inner := &mockGenerator{}
	inner.generateFn = func(_ context.Context, _ []prompt.Message) (domain.GenerationResult, error) {
		if inner.calls < 3 {
			return domain.GenerationResult{}, fmt.Errorf("overloaded: %w", domain.ErrGeneration)
		}
		return domain.GenerationResult{Content: "late answer"}, nil
	}
	rg := NewRetryGenerator(inner, "m", 3, time.Millisecond, zap.NewNop())

	result, err := rg.Generate(context.Background(), []prompt.Message{{Role: domain.RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "late answer" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryGenerator_Exhaustion(t *testing.T) {
	inner := &mockGenerator{
		generateFn: func(_ context.Context, _ []prompt.Message) (domain.GenerationResult, error) {
			return domain.GenerationResult{}, domain.ErrGeneration
		},
	}
	rg := NewRetryGenerator(inner, "m", 2, time.Millisecond, zap.NewNop())

	_, err := rg.Generate(context.Background(), []prompt.Message{{Role: domain.RoleUser, Content: "q"}})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 1+2 calls, got %d", inner.calls)
	}
}

func TestRetryGenerator_NonTransientStops(t *testing.T) {
	boom := errors.New("bad prompt")
	inner := &mockGenerator{
		generateFn: func(_ context.Context, _ []prompt.Message) (domain.GenerationResult, error) {
			return domain.GenerationResult{}, boom
		},
	}
	rg := NewRetryGenerator(inner, "m", 3, time.Millisecond, zap.NewNop())

	_, err := rg.Generate(context.Background(), []prompt.Message{{Role: domain.RoleUser, Content: "q"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryGenerator_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &mockGenerator{
		generateFn: func(_ context.Context, _ []prompt.Message) (domain.GenerationResult, error) {
			cancel()
			return domain.GenerationResult{}, domain.ErrGeneration
		},
	}
	rg := NewRetryGenerator(inner, "m", 3, time.Millisecond, zap.NewNop())

	_, err := rg.Generate(ctx, []prompt.Message{{Role: domain.RoleUser, Content: "q"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected no retries after cancellation, got %d calls", inner.calls)
	}
}
