package subsolve

import (
	"fmt"

	"crosswarped.com/subsolve/pkg/primitives"
)

// StopReason records why a restart ended.
type StopReason int

const (
	// StopStalled means StallLimit consecutive proposals failed to improve
	// the score.
	StopStalled StopReason = iota
	// StopBudget means the restart used its MaxIterations proposals.
	StopBudget
	// StopDeadline means the restart ran past its RestartTimeout.
	StopDeadline
	// StopCancelled means the search context was cancelled.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopStalled:
		return "stalled"
	case StopBudget:
		return "budget"
	case StopDeadline:
		return "deadline"
	case StopCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *StopReason) UnmarshalText(text []byte) error {
	for _, s := range []StopReason{StopStalled, StopBudget, StopDeadline, StopCancelled} {
		if string(text) == s.String() {
			*r = s
			return nil
		}
	}
	return fmt.Errorf("unknown stop reason %q", text)
}

// Result is the final state of one restart.
type Result struct {
	Restart    int            `json:"restart"`
	Key        primitives.Key `json:"key"`
	Plaintext  string         `json:"plaintext"`
	Score      float64        `json:"score"`
	Iterations int            `json:"iterations"`
	Accepts    int            `json:"accepts"`
	Stop       StopReason     `json:"stop"`
}

func (r Result) Repr() string {
	return fmt.Sprintf("#%d %.4f %s\n%s", r.Restart, r.Score, r.Key, r.Plaintext)
}

func (r Result) DebugString() string {
	return fmt.Sprintf("Result{restart: %d, score: %f, key: %s, iterations: %d, accepts: %d, stop: %s, plaintext: %q}",
		r.Restart, r.Score, r.Key, r.Iterations, r.Accepts, r.Stop, r.Plaintext)
}

// Best returns the highest scoring result. Ties go to the earliest restart.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best, true
}
