package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	result string
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.result, s.err
}

func TestChain_FirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", result: "ok"}
	fallback := &stubProvider{name: "fallback", result: "should not be used"}
	chain := NewChain(primary, fallback)

	result, err := chain.Complete(context.Background(), "analyze this")
	require.NoError(t, err)

	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestChain_FallsBackOnError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("rate limited")}
	fallback := &stubProvider{name: "fallback", result: "fallback answer"}
	chain := NewChain(primary, fallback)

	result, err := chain.Complete(context.Background(), "analyze this")
	require.NoError(t, err)

	assert.Equal(t, "fallback answer", result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChain_AllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("boom")}
	fallback := &stubProvider{name: "fallback", err: errors.New("also boom")}
	chain := NewChain(primary, fallback)

	_, err := chain.Complete(context.Background(), "analyze this")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all completion providers failed")
	assert.Contains(t, err.Error(), "also boom")
}

func TestChain_NoProviders(t *testing.T) {
	chain := NewChain()

	_, err := chain.Complete(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChain_EmptyPrompt(t *testing.T) {
	chain := NewChain(&stubProvider{name: "primary", result: "ok"})

	_, err := chain.Complete(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestChain_ContextCanceled(t *testing.T) {
	primary := &stubProvider{name: "primary", result: "ok"}
	chain := NewChain(primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Complete(ctx, "analyze this")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, primary.calls)
}

func TestChain_Name(t *testing.T) {
	chain := NewChain(&stubProvider{name: "openai"}, &stubProvider{name: "gemini"})
	assert.Equal(t, "chain(openai,gemini)", chain.Name())
}
