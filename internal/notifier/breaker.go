package notifier

import (
	"log/slog"
	"time"

	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

const breakerName = "discord-notifications"

// newSendBreaker opens after a run of consecutive send failures so a Discord
// outage does not stall every tracking task on network timeouts.
func newSendBreaker() *gobreaker.CircuitBreaker[discord.MessageRef] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[discord.MessageRef](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
