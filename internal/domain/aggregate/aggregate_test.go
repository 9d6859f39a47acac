package aggregate

import (
	"encoding/json"
	"sort"
	"testing"
	"unicode/utf8"

	"github.com/parleyhq/parley/internal/domain/discussion"
)

func input(d *discussion.Discussion, round *discussion.Round, bodies map[string]string) Input {
	in := Input{Discussion: d, Round: round}
	// Stable iteration so submission order is deterministic in tests.
	roles := make([]string, 0, len(bodies))
	for r := range bodies {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	for _, r := range roles {
		in.Submissions = append(in.Submissions, discussion.Submission{FromRole: r, Body: bodies[r]})
	}
	return in
}

func TestForMode_CoversAllModes(t *testing.T) {
	for _, mode := range []discussion.Mode{
		discussion.ModeDelphi, discussion.ModeOxford, discussion.ModeRedTeam, discussion.ModeContinuous,
	} {
		agg, err := ForMode(mode)
		if err != nil {
			t.Fatalf("ForMode(%s): %v", mode, err)
		}
		if agg.Mode() != mode {
			t.Fatalf("ForMode(%s) returned aggregator for %s", mode, agg.Mode())
		}
	}
	if _, err := ForMode("jury"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestShuffled_IsPermutation(t *testing.T) {
	in := input(nil, &discussion.Round{Number: 1}, map[string]string{
		"architect": "A", "developer": "B", "reviewer": "C", "tester": "D",
	})

	agg := NewShuffledWithSeed(discussion.ModeDelphi, func() int64 { return 42 })
	res, err := agg.Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	var data ShuffledData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Seed != 42 {
		t.Fatalf("expected recorded seed 42, got %d", data.Seed)
	}
	if data.Count != 4 || len(data.Entries) != 4 {
		t.Fatalf("expected 4 entries, got count=%d len=%d", data.Count, len(data.Entries))
	}

	got := append([]string(nil), data.Entries...)
	sort.Strings(got)
	want := []string{"A", "B", "C", "D"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries are not a permutation of submissions: %v", data.Entries)
		}
	}
}

func TestShuffled_IdentityPermutationFrequency(t *testing.T) {
	// With n=3 submissions the identity permutation should appear with
	// probability 1/3! across independent seeds. Loose statistical bounds.
	in := input(nil, &discussion.Round{Number: 1}, map[string]string{
		"a": "1", "b": "2", "c": "3",
	})

	const trials = 3000
	seed := int64(0)
	agg := NewShuffledWithSeed(discussion.ModeDelphi, func() int64 { seed++; return seed })

	identity := 0
	for range trials {
		res, err := agg.Aggregate(in)
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		var data ShuffledData
		if err := json.Unmarshal(res.Data, &data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if data.Entries[0] == "1" && data.Entries[1] == "2" && data.Entries[2] == "3" {
			identity++
		}
	}

	freq := float64(identity) / trials
	if freq < 0.10 || freq > 0.25 {
		t.Fatalf("identity permutation frequency %.3f outside [0.10, 0.25]; expected ~1/6", freq)
	}
}

func TestShuffled_EmptyRound(t *testing.T) {
	agg := NewShuffled(discussion.ModeRedTeam)
	res, err := agg.Aggregate(Input{Round: &discussion.Round{Number: 2}})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Rendered == "" {
		t.Fatal("expected rendered output for empty round")
	}
}

func TestOxford_Partition(t *testing.T) {
	d := &discussion.Discussion{
		Mode:  discussion.ModeOxford,
		Teams: &discussion.Teams{For: []string{"architect"}, Against: []string{"developer"}},
	}
	in := input(d, &discussion.Round{Number: 1}, map[string]string{
		"architect": "pro",
		"developer": "con",
		"observer":  "comment",
	})

	res, err := (Oxford{}).Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	var data OxfordData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(data.For) != 1 || data.For[0].Role != "architect" {
		t.Fatalf("unexpected for side: %+v", data.For)
	}
	if len(data.Against) != 1 || data.Against[0].Role != "developer" {
		t.Fatalf("unexpected against side: %+v", data.Against)
	}
	if len(data.Unassigned) != 1 || data.Unassigned[0].Role != "observer" {
		t.Fatalf("unassigned submissions must be shown, not dropped: %+v", data.Unassigned)
	}
}

func TestOxford_NoTeamsConfigured(t *testing.T) {
	d := &discussion.Discussion{Mode: discussion.ModeOxford}
	in := input(d, &discussion.Round{Number: 1}, map[string]string{"x": "body"})

	res, err := (Oxford{}).Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var data OxfordData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(data.Unassigned) != 1 {
		t.Fatalf("expected everything unassigned, got %+v", data)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"I fully agree with this.", "agree"},
		{"Sounds good to me", "agree"},
		{"I disagree, this breaks the API", "disagree"},
		{"Strong concerns about the migration", "disagree"},
		{"-1 on this change", "disagree"},
		{"An alternative would be to batch the writes", "alternative"},
		{"What if we used a queue instead?", "alternative"},
		// Priority: disagree wins over alternative.
		{"I object; alternatively we could defer", "disagree"},
		{"", "agree"},
	}
	for _, tt := range tests {
		if got := Classify(tt.body); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.body, got, tt.want)
		}
	}
}

func TestContinuous_SilenceIsConsent(t *testing.T) {
	// participants=[a,b,c], trigger_from=a, only b submits "agree" ->
	// APPROVED with agree_count=2 (b explicit + c silent).
	d := &discussion.Discussion{
		Mode:         discussion.ModeContinuous,
		Participants: []string{"a", "b", "c"},
	}
	in := input(d, &discussion.Round{Number: 1, TriggerFrom: "a"}, map[string]string{
		"b": "agree, ship it",
	})

	res, err := (Continuous{}).Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var data ContinuousData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Verdict != VerdictApproved {
		t.Fatalf("expected APPROVED, got %s", data.Verdict)
	}
	if data.AgreeCount != 2 {
		t.Fatalf("expected agree_count=2, got %d", data.AgreeCount)
	}
	if data.DisagreeCount != 0 {
		t.Fatalf("expected disagree_count=0, got %d", data.DisagreeCount)
	}
	if len(data.SilentAgree) != 1 || data.SilentAgree[0] != "c" {
		t.Fatalf("expected c counted by silence, got %v", data.SilentAgree)
	}
}

func TestContinuous_AnyDisagreeForcesDisputed(t *testing.T) {
	d := &discussion.Discussion{
		Mode:         discussion.ModeContinuous,
		Participants: []string{"a", "b", "c", "d"},
	}
	in := input(d, &discussion.Round{Number: 3, TriggerFrom: "a"}, map[string]string{
		"b": "looks great",
		"c": "I disagree: the rollout plan is missing",
	})

	res, err := (Continuous{}).Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var data ContinuousData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Verdict != VerdictDisputed {
		t.Fatalf("expected DISPUTED regardless of agree count, got %s", data.Verdict)
	}
	if data.DisagreeCount != 1 {
		t.Fatalf("expected disagree_count=1, got %d", data.DisagreeCount)
	}
	if len(data.Disagreements) != 1 {
		t.Fatalf("expected disagreement listed verbatim, got %v", data.Disagreements)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789…" {
		t.Fatalf("unexpected: %q", got)
	}
	// The cut must land on a rune boundary, not inside a multi-byte char.
	got := truncate("a日本語のテキスト", 4)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate split a rune: %q", got)
	}
	if got != "a日…" {
		t.Fatalf("unexpected: %q", got)
	}
}
