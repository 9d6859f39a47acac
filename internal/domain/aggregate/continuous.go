package aggregate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

// Continuous reviews a triggered round under the "silence = consent" rule:
// every non-author participant who did not submit counts as an implicit agree,
// and a single disagreement forces a DISPUTED verdict.
type Continuous struct{}

// Mode returns the discussion mode this aggregator serves.
func (Continuous) Mode() discussion.Mode { return discussion.ModeContinuous }

// Verdict values for a Continuous round.
const (
	VerdictApproved = "APPROVED"
	VerdictDisputed = "DISPUTED"
)

// Stance classification, in priority order disagree > alternative > agree.
var (
	disagreeRe    = regexp.MustCompile(`(?i)\b(disagree|object|oppose|reject|veto|blocker|concern(?:s|ed)?|-1)\b`)
	alternativeRe = regexp.MustCompile(`(?i)\b(alternative(?:ly)?|instead|rather|counter-?propos\w*|suggest|what if)\b`)
)

// ContinuousData is the structured aggregate payload.
type ContinuousData struct {
	Verdict          string   `json:"verdict"`
	AgreeCount       int      `json:"agree_count"`
	DisagreeCount    int      `json:"disagree_count"`
	AlternativeCount int      `json:"alternative_count"`
	Disagreements    []string `json:"disagreements,omitempty"` // verbatim, truncated
	Alternatives     []string `json:"alternatives,omitempty"`  // verbatim, truncated
	SilentAgree      []string `json:"silent_agree,omitempty"`  // participants counted by silence
}

// Classify buckets one submission body. Unclassified text defaults to agree.
func Classify(body string) string {
	switch {
	case disagreeRe.MatchString(body):
		return "disagree"
	case alternativeRe.MatchString(body):
		return "alternative"
	default:
		return "agree"
	}
}

// Aggregate classifies each submission, applies silence-as-consent for the
// remaining participants, and derives the verdict: APPROVED iff nobody
// disagreed.
func (Continuous) Aggregate(in Input) (*Result, error) {
	const quoteLimit = 400

	var data ContinuousData
	submitted := make(map[string]bool, len(in.Submissions))

	for _, s := range in.Submissions {
		submitted[s.FromRole] = true
		switch Classify(s.Body) {
		case "disagree":
			data.DisagreeCount++
			data.Disagreements = append(data.Disagreements, s.FromRole+": "+truncate(s.Body, quoteLimit))
		case "alternative":
			data.AlternativeCount++
			data.Alternatives = append(data.Alternatives, s.FromRole+": "+truncate(s.Body, quoteLimit))
		default:
			data.AgreeCount++
		}
	}

	if in.Discussion != nil {
		for _, p := range in.Discussion.Participants {
			if p == in.Round.TriggerFrom || submitted[p] {
				continue
			}
			data.AgreeCount++
			data.SilentAgree = append(data.SilentAgree, p)
		}
	}

	data.Verdict = VerdictApproved
	if data.DisagreeCount > 0 {
		data.Verdict = VerdictDisputed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Continuous Review, Round %d: %s\n", in.Round.Number, data.Verdict)
	fmt.Fprintf(&b, "\nAgree: %d (of which silent: %d) · Alternatives: %d · Disagree: %d\n",
		data.AgreeCount, len(data.SilentAgree), data.AlternativeCount, data.DisagreeCount)
	if len(data.Disagreements) > 0 {
		b.WriteString("\n### Disagreements\n")
		for _, d := range data.Disagreements {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	if len(data.Alternatives) > 0 {
		b.WriteString("\n### Alternatives\n")
		for _, a := range data.Alternatives {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate: %w", err)
	}
	return &Result{Rendered: b.String(), Data: raw}, nil
}
