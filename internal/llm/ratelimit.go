package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Client and waits on a token bucket before every call
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited returns a Client allowing rps requests per second with the given burst (minimum 1)
func NewRateLimited(next Client, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// GenerateContent waits for a token then delegates
func (r *RateLimited) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.GenerateContent(ctx, prompt, tier)
}

// GenerateJSON waits for a token then delegates
func (r *RateLimited) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.GenerateJSON(ctx, prompt, tier)
}

// GetModel delegates to the wrapped client
func (r *RateLimited) GetModel(tier ModelTier) string {
	return r.next.GetModel(tier)
}

// Close closes the wrapped client
func (r *RateLimited) Close() error {
	return r.next.Close()
}
