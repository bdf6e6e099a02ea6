package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soundprediction/graphrag/pkg/types"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	MaxRetries int
	// InitialDelay is the delay before the first retry (default: 1 second).
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries (default: 60 seconds).
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential backoff factor (default: 2.0).
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client with bounded exponential backoff. Only transient
// upstream failures are retried; parse errors and client mistakes surface
// immediately.
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient creates a retrying wrapper around client.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryClient{client: client, config: config}
}

// Chat implements Client.
func (r *RetryClient) Chat(ctx context.Context, messages []types.Message, opts *GenerateOptions) (*types.Response, error) {
	var resp *types.Response
	err := r.do(ctx, func() error {
		var err error
		resp, err = r.client.Chat(ctx, messages, opts)
		return err
	})
	return resp, err
}

// ChatWithJSON implements Client.
func (r *RetryClient) ChatWithJSON(ctx context.Context, messages []types.Message, opts *GenerateOptions, out any) error {
	return r.do(ctx, func() error {
		return r.client.ChatWithJSON(ctx, messages, opts, out)
	})
}

// Close implements Client.
func (r *RetryClient) Close() error { return r.client.Close() }

func (r *RetryClient) do(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("cancelled during retry backoff: %w", ctx.Err())
			}
		}
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, types.ErrTransientUpstream) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func (r *RetryClient) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1)))
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	return d
}

var _ Client = (*RetryClient)(nil)
