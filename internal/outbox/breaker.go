package outbox

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"example.com/menta/internal/logging"
)

const breakerName = "kafka-producer"

// BreakerSettings tunes the circuit breaker guarding Kafka writes.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func newKafkaBreaker(settings BreakerSettings) *gobreaker.CircuitBreaker[struct{}] {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	breakerStateGauge.Set(0)
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := logging.Component("outbox")
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("kafka breaker state change")
			breakerStateGauge.Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
