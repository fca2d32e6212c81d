package hw

import (
	"fmt"
	"os"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"gopkg.in/yaml.v3"
)

// RegisterMap describes the registers monitored on each chip.
type RegisterMap struct {
	Chips []ChipRegisters `yaml:"chips"`
}

type ChipRegisters struct {
	Name      string        `yaml:"name"`
	Registers []RegisterDef `yaml:"registers"`
}

type RegisterDef struct {
	Name    string `yaml:"name"`
	Address uint32 `yaml:"address"`
	Min     uint32 `yaml:"min"`
	Max     uint32 `yaml:"max"`
}

func LoadRegisterMap(path string) (*RegisterMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrReadRegisterMap, err)
	}
	return ParseRegisterMap(data)
}

func ParseRegisterMap(data []byte) (*RegisterMap, error) {
	errFactory := errors.New()

	var m RegisterMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errFactory.Wrap(ErrRegisterMap, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *RegisterMap) Validate() error {
	errFactory := errors.New()

	seen := make(map[string]bool, len(m.Chips))
	for i, chip := range m.Chips {
		if chip.Name == "" {
			return errFactory.WithData(ErrRegisterMap, fmt.Sprintf("chip %d has no name", i))
		}
		if seen[chip.Name] {
			return errFactory.WithData(ErrRegisterMap, fmt.Sprintf("duplicate chip %q", chip.Name))
		}
		seen[chip.Name] = true

		if len(chip.Registers) > monitor.MaxRegisters {
			return errFactory.WithData(ErrRegisterMap,
				fmt.Sprintf("chip %q has %d registers, limit %d", chip.Name, len(chip.Registers), monitor.MaxRegisters))
		}
		for _, reg := range chip.Registers {
			if reg.Min > reg.Max {
				return errFactory.WithData(ErrRegisterMap,
					fmt.Sprintf("register %s/%s: min 0x%08X above max 0x%08X", chip.Name, reg.Name, reg.Min, reg.Max))
			}
		}
	}

	return nil
}

// Snapshots returns the register layout for the named chip.
func (m *RegisterMap) Snapshots(chip string) ([]monitor.RegisterSnapshot, bool) {
	for _, c := range m.Chips {
		if c.Name != chip {
			continue
		}
		out := make([]monitor.RegisterSnapshot, 0, len(c.Registers))
		for _, reg := range c.Registers {
			out = append(out, monitor.NewRegister(reg.Name, reg.Address, reg.Min, reg.Max))
		}
		return out, true
	}
	return nil, false
}
