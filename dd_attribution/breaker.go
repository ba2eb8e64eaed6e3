package dd_attribution

import (
	"context"
	"time"

	"mta/model/model"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerOpenTimeout      = 30 * time.Second
)

// BreakerJudgmentProvider stops calling an unhealthy provider after consecutive
// failures and fails fast with ProviderFailure while open.
type BreakerJudgmentProvider struct {
	provider model.JudgmentProvider
	breaker  *gobreaker.CircuitBreaker
}

func NewBreakerJudgmentProvider(name string, provider model.JudgmentProvider,
	failureThreshold uint32, openTimeout time.Duration) *BreakerJudgmentProvider {

	if failureThreshold == 0 {
		failureThreshold = DefaultBreakerFailureThreshold
	}
	if openTimeout <= 0 {
		openTimeout = DefaultBreakerOpenTimeout
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Judgment provider circuit breaker state changed.")
		},
	}
	return &BreakerJudgmentProvider{provider: provider, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (provider *BreakerJudgmentProvider) Infer(ctx context.Context, journey model.JourneyContext) (map[int]float64, error) {
	result, err := provider.breaker.Execute(func() (interface{}, error) {
		return provider.provider.Infer(ctx, journey)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, model.NewProviderFailureError(err, "judgment provider unavailable")
		}
		return nil, err
	}
	return result.(map[int]float64), nil
}

func (provider *BreakerJudgmentProvider) State() gobreaker.State {
	return provider.breaker.State()
}
