package supervisor

import (
	"context"
	"time"

	"codeberg.org/mutker/chipmon/internal/chip"
	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
)

// Group supervises every chip of a chip.System, checking each at its
// priority cadence.
type Group struct {
	cfg       Config
	system    *chip.System
	members   map[int]*Supervisor
	logger    logger.Logger
	iteration int
}

func NewGroup(cfg Config, sys *chip.System, h Hardware, opts ...Option) (*Group, error) {
	// resolve the logger the members will use
	probe := &Supervisor{logger: logger.Default()}
	for _, opt := range opts {
		opt(probe)
	}

	g := &Group{
		cfg:     cfg,
		system:  sys,
		members: make(map[int]*Supervisor, len(sys.Chips())),
		logger:  probe.logger,
	}

	for _, c := range sys.Chips() {
		s, err := New(cfg, c.State, c.Session, h, opts...)
		if err != nil {
			return nil, err
		}
		g.members[c.ID] = s
	}
	return g, nil
}

func (g *Group) Member(id int) (*Supervisor, bool) {
	s, ok := g.members[id]
	return s, ok
}

func (g *Group) Iteration() int { return g.iteration }

// Cycle checks the chips due this iteration and then compares the active
// chips with each other.
func (g *Group) Cycle(ctx context.Context) (map[int]Result, error) {
	g.iteration++
	results := make(map[int]Result)

	for _, c := range g.system.Due(g.iteration) {
		res, err := g.members[c.ID].Tick(ctx)
		if err != nil {
			if errors.HasCode(err, ErrInactive) {
				continue
			}
			return results, err
		}
		results[c.ID] = res
	}

	for _, f := range g.system.Correlate() {
		if !f.Anomalous() {
			continue
		}
		g.logger.Warn().
			Int("chip_a", f.A).
			Int("chip_b", f.B).
			Float64("voltage_diff", f.VoltageDiff).
			Float64("temperature_diff", f.TemperatureDiff).
			Float64("register_match", f.RegisterMatch).
			Msg("Cross-chip anomaly")
	}

	return results, nil
}

// Run cycles every interval until ctx is cancelled or no chip is active.
func (g *Group) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := g.Cycle(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if g.system.ActiveCount() == 0 {
				return errors.New().New(ErrAllInactive)
			}
		}
	}
}
