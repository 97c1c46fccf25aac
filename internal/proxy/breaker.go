package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vnmchuo/ratelimit-ai/internal/provider"
)

var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker trips after consecutive transport failures. Upstream error
// statuses come back as responses and count as successes here.
type Breaker struct {
	provider provider.Provider
	cb       *gobreaker.CircuitBreaker
}

// NewBreaker wraps p. With failures == 0 p is returned unwrapped.
func NewBreaker(p provider.Provider, failures uint32, cooldown time.Duration, log *zap.Logger) provider.Provider {
	if failures == 0 {
		return p
	}
	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	}
	return &Breaker{
		provider: p,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Name() string { return b.provider.Name() }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Forward(ctx context.Context, body []byte, meta provider.Metadata) (*provider.Response, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.provider.Forward(ctx, body, meta)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w for provider: %s", ErrBreakerOpen, b.provider.Name())
	}
	if err != nil {
		return nil, err
	}
	return result.(*provider.Response), nil
}
