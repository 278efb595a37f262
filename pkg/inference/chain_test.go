package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-xeo/internal/log"
)

func TestChainFallback(t *testing.T) {
	failing := WithError(errors.New("gpu host down"))
	backup := NewMock("from backup")

	chain, err := NewChain(log.Discard(), failing, backup)
	if err != nil {
		t.Fatal(err)
	}

	gen, err := chain.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.Text != "from backup" {
		t.Errorf("Expected backup text, got %s", gen.Text)
	}
	if failing.CallCount("Generate") != 1 || backup.CallCount("Generate") != 1 {
		t.Error("Expected both models to be tried once")
	}
}

func TestChainAllFail(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	chain, _ := NewChain(log.Discard(), WithError(first), WithError(second))

	_, err := chain.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Errorf("Expected ErrAllModelsFailed, got %v", err)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("Expected both causes in chain error, got %v", err)
	}

	var ce *ChainError
	if !errors.As(err, &ce) || len(ce.Failures) != 2 {
		t.Fatalf("Expected ChainError with 2 failures, got %v", err)
	}
	if ce.Failures[0].Err != first || ce.Failures[0].Model == "" {
		t.Errorf("Expected first failure to name its model, got %+v", ce.Failures[0])
	}
}

func TestChainEmpty(t *testing.T) {
	if _, err := NewChain(nil); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Expected ErrModelUnavailable, got %v", err)
	}
}

func TestChainName(t *testing.T) {
	chain, _ := NewChain(nil, NewMock(""), NewSimulator(0))
	if chain.Name() != "mock>simulator" {
		t.Errorf("Unexpected chain name %s", chain.Name())
	}
}

func TestChainHealth(t *testing.T) {
	unhealthy := WithError(errors.New("down"))
	chain, _ := NewChain(nil, unhealthy, NewMock(""))
	if err := chain.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy chain, got %v", err)
	}

	chain, _ = NewChain(nil, unhealthy)
	if err := chain.Health(context.Background()); err == nil {
		t.Error("Expected unhealthy chain")
	}
}
