// Package aggregate turns a closed round's submissions into a rendered,
// mode-specific summary. Each mode has one Aggregator implementation; the set
// is closed and fixed.
package aggregate

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

// Input carries everything an aggregator may consult. Submissions are in
// board order (ascending message id).
type Input struct {
	Discussion  *discussion.Discussion
	Round       *discussion.Round
	Submissions []discussion.Submission
}

// Result is the outcome of aggregating one round.
type Result struct {
	Rendered string          `json:"rendered"` // human-readable summary posted to the board
	Data     json.RawMessage `json:"data"`     // structured payload stored on the round
}

// Aggregator produces the summary for one discussion mode. Implementations
// are pure: same input, same output (up to the recorded shuffle seed).
type Aggregator interface {
	Mode() discussion.Mode
	Aggregate(in Input) (*Result, error)
}

// ForMode returns the aggregator for the given mode.
func ForMode(mode discussion.Mode) (Aggregator, error) {
	switch mode {
	case discussion.ModeDelphi:
		return NewShuffled(discussion.ModeDelphi), nil
	case discussion.ModeRedTeam:
		return NewShuffled(discussion.ModeRedTeam), nil
	case discussion.ModeOxford:
		return Oxford{}, nil
	case discussion.ModeContinuous:
		return Continuous{}, nil
	default:
		return nil, fmt.Errorf("no aggregator for mode %q", mode)
	}
}

// truncate limits verbatim submission text quoted in summaries, cutting on a
// rune boundary so multi-byte text is never split mid-character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
