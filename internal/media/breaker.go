package media

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/metrics"
	"github.com/threadline/backend/internal/models"
)

// BreakerSettings tunes the asset host circuit breaker
type BreakerSettings struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures and probes again after 30s
var DefaultBreakerSettings = BreakerSettings{FailureThreshold: 5, Timeout: 30 * time.Second}

// BreakerHost guards an AssetHost with a circuit breaker so a failing
// object store fails uploads fast instead of holding requests open.
type BreakerHost struct {
	next    AssetHost
	uploads *gobreaker.CircuitBreaker[Asset]
	deletes *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerHost wraps next
func NewBreakerHost(next AssetHost, s BreakerSettings) *BreakerHost {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: s.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("asset host circuit breaker changed state")
				metrics.AssetHostBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}
	}
	return &BreakerHost{
		next:    next,
		uploads: gobreaker.NewCircuitBreaker[Asset](settings("asset-upload")),
		deletes: gobreaker.NewCircuitBreaker[struct{}](settings("asset-delete")),
	}
}

// Upload implements AssetHost
func (b *BreakerHost) Upload(ctx context.Context, in UploadInput) (Asset, error) {
	asset, err := b.uploads.Execute(func() (Asset, error) {
		return b.next.Upload(ctx, in)
	})
	observe("upload", err)
	return asset, err
}

// Delete implements AssetHost
func (b *BreakerHost) Delete(ctx context.Context, publicID string, t models.MediaType) error {
	_, err := b.deletes.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, publicID, t)
	})
	observe("delete", err)
	return err
}

func observe(operation string, err error) {
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.AssetHostRequests.WithLabelValues(operation, result).Inc()
}
