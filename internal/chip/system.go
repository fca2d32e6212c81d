package chip

import (
	"fmt"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
)

const (
	MaxChips      = 8
	AddressStride = 0x1000

	// Scanning stops once a priority-1 chip has this many errors.
	abortErrorCount = 3
)

// Chip is one monitored device with its own state and recovery session.
type Chip struct {
	ID       int
	Name     string
	Priority int
	State    *monitor.SystemState
	Session  *recovery.Session
}

func (c *Chip) Active() bool {
	return c.State.Active
}

// System groups the chips on one bus.
type System struct {
	th    monitor.Thresholds
	chips []*Chip
}

type Option func(*options)

type options struct {
	regmap  *hw.RegisterMap
	session []recovery.Option
}

// WithRegisterMap replaces the default register layout of every chip listed
// in m.
func WithRegisterMap(m *hw.RegisterMap) Option {
	return func(o *options) { o.regmap = m }
}

// WithSessionOptions is applied to every chip's recovery session.
func WithSessionOptions(opts ...recovery.Option) Option {
	return func(o *options) { o.session = append(o.session, opts...) }
}

// Priority returns the scheduling priority of chip id, 1 being the highest.
func Priority(id int) int {
	return id%3 + 1
}

func Name(id int) string {
	return fmt.Sprintf("chip%d", id)
}

func New(count int, th monitor.Thresholds, cfg recovery.Config, opts ...Option) (*System, error) {
	errFactory := errors.New()

	if count < 1 || count > MaxChips {
		return nil, errFactory.WithData(ErrInvalidChipCount, fmt.Sprintf("%d not in 1..%d", count, MaxChips))
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sys := &System{th: th, chips: make([]*Chip, 0, count)}
	for id := 0; id < count; id++ {
		name := Name(id)

		state, err := layout(id, name, th, o.regmap)
		if err != nil {
			return nil, err
		}

		sessionOpts := append(append([]recovery.Option(nil), o.session...), recovery.WithChip(name))
		session, err := recovery.NewSession(th, cfg, sessionOpts...)
		if err != nil {
			return nil, errFactory.Wrap(ErrSession, err)
		}

		sys.chips = append(sys.chips, &Chip{
			ID:       id,
			Name:     name,
			Priority: Priority(id),
			State:    state,
			Session:  session,
		})
	}

	return sys, nil
}

func layout(id int, name string, th monitor.Thresholds, m *hw.RegisterMap) (*monitor.SystemState, error) {
	state := monitor.NewSystemState(th)

	if m != nil {
		if regs, ok := m.Snapshots(name); ok {
			state.Registers = state.Registers[:0]
			for _, reg := range regs {
				if err := monitor.AddRegister(state, reg); err != nil {
					return nil, errors.New().Wrap(ErrRegisterLayout, err)
				}
			}
			return state, nil
		}
	}

	for i := range state.Registers {
		reg := &state.Registers[i]
		reg.Address += uint32(id) * AddressStride
		reg.Name = fmt.Sprintf("CHIP%d_REG%d", id, i)
	}
	return state, nil
}

func (s *System) Chips() []*Chip {
	return s.chips
}

func (s *System) Chip(id int) (*Chip, bool) {
	if id < 0 || id >= len(s.chips) {
		return nil, false
	}
	return s.chips[id], true
}

func (s *System) ActiveCount() int {
	n := 0
	for _, c := range s.chips {
		if c.Active() {
			n++
		}
	}
	return n
}

// Due returns the active chips checked on iteration (counted from 1):
// priority 1 every iteration, priority 2 every second, priority 3 every
// third.
func (s *System) Due(iteration int) []*Chip {
	var due []*Chip
	for _, c := range s.chips {
		if c.Active() && iteration%c.Priority == 0 {
			due = append(due, c)
		}
	}
	return due
}
