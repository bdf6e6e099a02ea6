package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/graphrag/pkg/types"
)

// BreakerConfig tunes the circuit breaker around a model client.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `json:"max_requests" mapstructure:"max_requests"`
	// Interval over which failure counts are accumulated, in seconds.
	Interval int `json:"interval" mapstructure:"interval"`
	// Timeout before an open breaker probes again, in seconds.
	Timeout int `json:"timeout" mapstructure:"timeout"`
	// ReadyToTripRatio is the failure ratio that opens the breaker.
	ReadyToTripRatio float64 `json:"ready_to_trip_ratio" mapstructure:"ready_to_trip_ratio"`
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      2,
		Interval:         60,
		Timeout:          30,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerClient wraps a Client with circuit breaking. Once the upstream fails
// often enough the breaker opens and calls fail fast with
// types.ErrTransientUpstream until the probe window passes.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerClient creates a circuit-breaking wrapper around client.
func NewBreakerClient(client Client, cfg BreakerConfig, name string, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerClient{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

// Chat implements Client.
func (c *BreakerClient) Chat(ctx context.Context, messages []types.Message, opts *GenerateOptions) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages, opts)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return resp.(*types.Response), nil
}

// ChatWithJSON implements Client.
func (c *BreakerClient) ChatWithJSON(ctx context.Context, messages []types.Message, opts *GenerateOptions, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.client.ChatWithJSON(ctx, messages, opts, out)
	})
	return mapBreakerErr(err)
}

// Close implements Client.
func (c *BreakerClient) Close() error { return c.client.Close() }

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", types.ErrTransientUpstream, err)
	}
	return err
}

var _ Client = (*BreakerClient)(nil)
