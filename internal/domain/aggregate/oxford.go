package aggregate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

// Oxford partitions submissions by the discussion's team assignments and
// renders the two sides plus anything unassigned.
type Oxford struct{}

// Mode returns the discussion mode this aggregator serves.
func (Oxford) Mode() discussion.Mode { return discussion.ModeOxford }

// OxfordEntry is one attributed submission in the debate summary.
type OxfordEntry struct {
	Role string `json:"role"`
	Body string `json:"body"`
}

// OxfordData is the structured aggregate payload.
type OxfordData struct {
	For        []OxfordEntry `json:"for"`
	Against    []OxfordEntry `json:"against"`
	Unassigned []OxfordEntry `json:"unassigned"`
}

// Aggregate splits submissions into for/against/unassigned sections.
// Submissions from roles outside both teams are shown, not dropped.
func (Oxford) Aggregate(in Input) (*Result, error) {
	var teams discussion.Teams
	if in.Discussion != nil && in.Discussion.Teams != nil {
		teams = *in.Discussion.Teams
	}

	side := make(map[string]string, len(teams.For)+len(teams.Against))
	for _, r := range teams.For {
		side[r] = "for"
	}
	for _, r := range teams.Against {
		side[r] = "against"
	}

	var data OxfordData
	for _, s := range in.Submissions {
		entry := OxfordEntry{Role: s.FromRole, Body: s.Body}
		switch side[s.FromRole] {
		case "for":
			data.For = append(data.For, entry)
		case "against":
			data.Against = append(data.Against, entry)
		default:
			data.Unassigned = append(data.Unassigned, entry)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Oxford Debate Round %d\n", in.Round.Number)
	renderSide(&b, "For", data.For)
	renderSide(&b, "Against", data.Against)
	if len(data.Unassigned) > 0 {
		renderSide(&b, "Unassigned", data.Unassigned)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate: %w", err)
	}
	return &Result{Rendered: b.String(), Data: raw}, nil
}

func renderSide(b *strings.Builder, label string, entries []OxfordEntry) {
	fmt.Fprintf(b, "\n### %s (%d)\n", label, len(entries))
	for _, e := range entries {
		fmt.Fprintf(b, "\n**%s**: %s\n", e.Role, e.Body)
	}
}
