package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls int
}

func (c *countingClient) GenerateContent(context.Context, string, ModelTier) (string, error) {
	c.calls++
	return "text", nil
}

func (c *countingClient) GenerateJSON(context.Context, string, ModelTier) (string, error) {
	c.calls++
	return "{}", nil
}

func (c *countingClient) GetModel(ModelTier) string { return "counting" }

func (c *countingClient) Close() error { return nil }

func TestRateLimited_Delegates(t *testing.T) {
	inner := &countingClient{}
	rl := NewRateLimited(inner, 1000, 5)

	out, err := rl.GenerateJSON(context.Background(), "p", TierLite)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)

	out, err = rl.GenerateContent(context.Background(), "p", TierLite)
	require.NoError(t, err)
	assert.Equal(t, "text", out)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "counting", rl.GetModel(TierLite))
	assert.NoError(t, rl.Close())
}

func TestRateLimited_ContextCancelled(t *testing.T) {
	inner := &countingClient{}
	// One token per minute; the burst token is consumed by the first call
	rl := NewRateLimited(inner, 1.0/60, 1)

	_, err := rl.GenerateJSON(context.Background(), "p", TierLite)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rl.GenerateJSON(ctx, "p", TierLite)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
