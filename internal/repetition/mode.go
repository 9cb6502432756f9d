// Package repetition describes a repetition run: its configuration, the
// validation applied before dispatch, the iteration plan and the per-iteration
// results.
package repetition

import (
	"fmt"
	"strings"
)

// Mode selects how iterations are planned and scheduled.
type Mode string

const (
	// ModeSimple replays the request RepetitionCount times with no input data.
	ModeSimple Mode = "simple"
	// ModeSequential runs one iteration per input record, one at a time.
	ModeSequential Mode = "sequential"
	// ModeRandom runs RepetitionCount iterations, each with a record drawn
	// uniformly at random (with replacement).
	ModeRandom Mode = "random"
)

// ParseMode converts a user supplied name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSimple:
		return ModeSimple, nil
	case ModeSequential:
		return ModeSequential, nil
	case ModeRandom:
		return ModeRandom, nil
	default:
		return "", fmt.Errorf("unknown repetition mode %q (want simple, sequential or random)", s)
	}
}

func (m Mode) String() string { return string(m) }

// usesInputData reports whether the mode consumes input records.
func (m Mode) usesInputData() (bool, error) {
	switch m {
	case ModeSimple:
		return false, nil
	case ModeSequential, ModeRandom:
		return true, nil
	default:
		return false, fmt.Errorf("unknown repetition mode %q", string(m))
	}
}

// usesCount reports whether the mode honours RepetitionCount and MaxConcurrency.
func (m Mode) usesCount() (bool, error) {
	switch m {
	case ModeSimple, ModeRandom:
		return true, nil
	case ModeSequential:
		return false, nil
	default:
		return false, fmt.Errorf("unknown repetition mode %q", string(m))
	}
}
