package chip

import "codeberg.org/mutker/chipmon/internal/monitor"

type ChipScan struct {
	ID      int
	Name    string
	Valid   int
	Total   int
	Status  monitor.Status
	Skipped bool
}

type ScanReport struct {
	Chips   []ChipScan
	Valid   int
	Scanned int
	// Aborted is set when a priority-1 chip hit the error limit; AbortedBy
	// names it.
	Aborted   bool
	AbortedBy int
}

// Scan reads every register of every active chip in order. Each invalid or
// unreadable register, and each chip that classifies other than Normal,
// counts one error against the chip. The scan stops as soon as a priority-1
// chip reaches three errors.
func (s *System) Scan(r monitor.RegisterReader) ScanReport {
	report := ScanReport{AbortedBy: -1}

	for _, c := range s.chips {
		cs := ChipScan{ID: c.ID, Name: c.Name, Total: len(c.State.Registers)}
		if !c.Active() {
			cs.Skipped = true
			cs.Status = c.State.Status
			report.Chips = append(report.Chips, cs)
			continue
		}

		for i := range c.State.Registers {
			reg := &c.State.Registers[i]
			report.Scanned++

			value, err := r.ReadRegister(reg.Address)
			if err != nil {
				reg.Valid = false
			} else {
				reg.Update(value)
			}

			if reg.Valid {
				report.Valid++
				continue
			}

			c.State.ErrorCount++
			if s.abort(c) {
				cs.Valid = monitor.CountValidRegisters(c.State)
				cs.Status = c.State.Status
				report.Chips = append(report.Chips, cs)
				report.Aborted = true
				report.AbortedBy = c.ID
				return report
			}
		}

		cs.Valid = monitor.CountValidRegisters(c.State)
		cs.Status = s.th.Classify(c.State)
		report.Chips = append(report.Chips, cs)

		if cs.Status != monitor.StatusNormal {
			c.State.ErrorCount++
			if s.abort(c) {
				report.Aborted = true
				report.AbortedBy = c.ID
				return report
			}
		}
	}

	return report
}

func (s *System) abort(c *Chip) bool {
	return c.Priority == 1 && c.State.ErrorCount >= abortErrorCount
}
