package profile

import (
	"context"
	"fmt"

	"github.com/ashureev/cognify/internal/domain"
	"golang.org/x/time/rate"
)

type limitedSink struct {
	next    Sink
	limiter *rate.Limiter
}

// WithRateLimit caps how often next is called. A caller that would have to
// wait past its context deadline fails instead of queuing.
func WithRateLimit(next Sink, perMinute, burst int) Sink {
	if perMinute <= 0 {
		return next
	}
	return &limitedSink{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), max(burst, 1)),
	}
}

func (s *limitedSink) Save(ctx context.Context, rec domain.ProfileRecord) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("profile write throttled: %w", err)
	}
	return s.next.Save(ctx, rec)
}

func (s *limitedSink) Name() string { return s.next.Name() }
