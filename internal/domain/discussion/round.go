package discussion

import "time"

// Round is one submission cycle within a discussion, bounded by open/close.
// Number is unique per discussion and monotonic.
type Round struct {
	ID                 string     `json:"id"`
	DiscussionID       string     `json:"discussion_id"`
	Number             int        `json:"number"`
	Topic              string     `json:"topic"`
	AutoTriggered      bool       `json:"auto_triggered"`
	TriggerFrom        string     `json:"trigger_from,omitempty"`
	OpenedAt           time.Time  `json:"opened_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	Aggregate          []byte     `json:"aggregate,omitempty"` // structured aggregate JSON, set on close
	AggregateMessageID *int64     `json:"aggregate_message_id,omitempty"`
}

// Open reports whether the round has not been closed yet.
func (r *Round) Open() bool {
	return r.ClosedAt == nil
}

// Age returns how long the round has been open.
func (r *Round) Age(now time.Time) time.Duration {
	return now.Sub(r.OpenedAt)
}

// Submission links a board message to a round as a participant's formal
// contribution. Invariant: at most one per (round, from_role).
type Submission struct {
	RoundID   string    `json:"round_id"`
	FromRole  string    `json:"from_role"`
	MessageID int64     `json:"message_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// QuorumReached reports whether every expected participant except the round's
// trigger author has submitted. Only meaningful for Continuous rounds.
func QuorumReached(participants []string, triggerFrom string, subs []Submission) bool {
	submitted := make(map[string]bool, len(subs))
	for _, s := range subs {
		submitted[s.FromRole] = true
	}
	for _, p := range participants {
		if p == triggerFrom {
			continue
		}
		if !submitted[p] {
			return false
		}
	}
	return true
}
