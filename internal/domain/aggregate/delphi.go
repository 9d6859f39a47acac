package aggregate

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

// Shuffled anonymizes submissions and renders them in a random order, so the
// reading order never correlates with submission order or any stable identity
// ordering. Used by the Delphi and Red Team modes.
type Shuffled struct {
	mode discussion.Mode
	seed func() int64
}

// NewShuffled creates a Shuffled aggregator for the given mode with a fresh
// seed drawn per round.
func NewShuffled(mode discussion.Mode) Shuffled {
	return Shuffled{mode: mode, seed: func() int64 { return time.Now().UnixNano() }}
}

// NewShuffledWithSeed fixes the seed source. Test hook.
func NewShuffledWithSeed(mode discussion.Mode, seed func() int64) Shuffled {
	return Shuffled{mode: mode, seed: seed}
}

// Mode returns the discussion mode this aggregator serves.
func (a Shuffled) Mode() discussion.Mode { return a.mode }

// ShuffledData is the structured aggregate payload. Seed is recorded so the
// permutation is auditable after the fact.
type ShuffledData struct {
	Seed    int64    `json:"seed"`
	Count   int      `json:"count"`
	Entries []string `json:"entries"` // bodies in rendered (shuffled) order
}

// Aggregate shuffles the submission bodies with a Fisher-Yates pass and
// renders them as numbered anonymous sections.
func (a Shuffled) Aggregate(in Input) (*Result, error) {
	bodies := make([]string, len(in.Submissions))
	for i, s := range in.Submissions {
		bodies[i] = s.Body
	}

	seed := a.seed()
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // audit seed, not crypto
	for i := len(bodies) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		bodies[i], bodies[j] = bodies[j], bodies[i]
	}

	var b strings.Builder
	title := "Delphi Round"
	if a.mode == discussion.ModeRedTeam {
		title = "Red Team Round"
	}
	fmt.Fprintf(&b, "## %s %d: anonymized submissions (%d)\n", title, in.Round.Number, len(bodies))
	for i, body := range bodies {
		fmt.Fprintf(&b, "\n### Participant %d\n%s\n", i+1, body)
	}
	if len(bodies) == 0 {
		b.WriteString("\nNo submissions were received this round.\n")
	}

	data, err := json.Marshal(ShuffledData{Seed: seed, Count: len(bodies), Entries: bodies})
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate: %w", err)
	}

	return &Result{Rendered: b.String(), Data: data}, nil
}
