package profile

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/metrics"
)

// Saver wraps a Sink with a timeout, logging and metrics. Failures never
// propagate: persistence is best effort.
type Saver struct {
	sink    Sink
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewSaver creates a saver. A zero timeout means 10 seconds.
func NewSaver(sink Sink, timeout time.Duration, m *metrics.Metrics) *Saver {
	if sink == nil {
		sink = Disabled()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Saver{sink: sink, timeout: timeout, metrics: m}
}

// Save reports whether rec reached the sink.
func (s *Saver) Save(ctx context.Context, rec domain.ProfileRecord) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.sink.Save(ctx, rec)
	s.metrics.ProfileSave(s.sink.Name(), err == nil)
	if err != nil {
		slog.Warn("Profile save failed, continuing without persistence",
			"sink", s.sink.Name(),
			"duration", time.Since(start),
			"error", err)
		return false
	}
	slog.Info("Profile saved", "sink", s.sink.Name(), "duration", time.Since(start))
	return true
}
