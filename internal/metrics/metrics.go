package metrics

import (
	"context"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
)

type service struct {
	repo Repository
}

type noopCollector struct{}

// NewService returns a collector backed by sqlite, or a no-op collector when
// metrics are disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return Noop(), nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidMetrics)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(snapshot); err != nil {
			return errFactory.Wrap(ErrMetricsCollection, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// Noop returns a collector that discards snapshots.
func Noop() Collector {
	return &noopCollector{}
}

func (*noopCollector) Record(_ context.Context, _ *Snapshot) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

type multiCollector []Collector

// Multi fans a snapshot out to every collector. Record and Close visit all
// collectors and return the first error.
func Multi(collectors ...Collector) Collector {
	return multiCollector(collectors)
}

func (m multiCollector) Record(ctx context.Context, snapshot *Snapshot) error {
	var first error
	for _, c := range m {
		if err := c.Record(ctx, snapshot); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiCollector) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
