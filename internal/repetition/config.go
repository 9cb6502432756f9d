package repetition

import (
	"github.com/torosent/repeater/internal/feeder"
)

// Config describes one repetition run. It is passed by value so a run never
// sees later edits.
type Config struct {
	// BaseRequestRef names the request to replay, e.g. "Users/Get user".
	BaseRequestRef string
	Mode           Mode
	// RepetitionCount is required for Simple and Random. Nil means unset.
	RepetitionCount *int
	// MaxConcurrency is required for Simple and Random. Sequential always uses 1.
	MaxConcurrency *int
	// DelayMs is the minimum gap between consecutive dispatch starts.
	DelayMs   int
	InputData feeder.InputData
}

// IntPtr is a convenience for building configs.
func IntPtr(v int) *int { return &v }
