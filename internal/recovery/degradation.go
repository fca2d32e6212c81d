package recovery

import (
	"fmt"
	"sync"
)

// Level is the operational tier the system runs at.
type Level int

const (
	LevelNormal Level = iota
	LevelMinor
	LevelMajor
	LevelCritical
)

type levelInfo struct {
	name        string
	description string
	actions     []string
}

var levels = map[Level]levelInfo{
	LevelNormal: {
		name:        "normal",
		description: "System returned to normal operation",
		actions:     []string{"All features enabled", "Full monitoring active"},
	},
	LevelMinor: {
		name:        "minor",
		description: "Minor degradation activated",
		actions:     []string{"Disabling detailed logging", "Reducing monitoring frequency", "Core functions remain active"},
	},
	LevelMajor: {
		name:        "major",
		description: "Major degradation activated",
		actions:     []string{"Disabling advanced monitoring", "Basic safety checks only", "Reduced register scanning"},
	},
	LevelCritical: {
		name:        "critical",
		description: "Critical degradation activated",
		actions:     []string{"Emergency monitoring only", "Preparing for safe shutdown", "Critical alerts active"},
	},
}

func (l Level) String() string {
	if info, ok := levels[l]; ok {
		return info.name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Description is the log text recorded when the level is entered.
func (l Level) Description() string {
	return levels[l].description
}

// Actions lists what the system does while running at the level.
func (l Level) Actions() []string {
	return append([]string(nil), levels[l].actions...)
}

// LevelForScore maps a health score onto a degradation level.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelNormal
	case score >= 60:
		return LevelMinor
	case score >= 30:
		return LevelMajor
	default:
		return LevelCritical
	}
}

// Transition is the outcome of one degradation evaluation.
type Transition struct {
	From    Level
	To      Level
	Score   int
	Changed bool
}

// Degrader holds the current degradation level of one session. It starts at
// LevelNormal and only moves through Evaluate.
type Degrader struct {
	mu    sync.RWMutex
	level Level
}

func (d *Degrader) Evaluate(score int) Transition {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := LevelForScore(score)
	tr := Transition{From: d.level, To: next, Score: score, Changed: next != d.level}
	d.level = next
	return tr
}

func (d *Degrader) Level() Level {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.level
}

func (d *Degrader) Degraded() bool {
	return d.Level() > LevelNormal
}
