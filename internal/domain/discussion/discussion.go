// Package discussion defines the structured discussion protocol model:
// discussions, rounds, submissions, and the phase machine that governs them.
package discussion

import (
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/domain"
)

// Mode identifies the discussion protocol in use.
type Mode string

// Supported discussion modes.
const (
	ModeDelphi     Mode = "delphi"
	ModeOxford     Mode = "oxford"
	ModeRedTeam    Mode = "red_team"
	ModeContinuous Mode = "continuous"
)

// Phase is the discussion lifecycle state.
type Phase string

// Discussion phases. The machine moves PREPARING -> SUBMITTING -> REVIEWING
// and loops SUBMITTING/REVIEWING until COMPLETE. PAUSED is reachable from
// SUBMITTING and REVIEWING.
const (
	PhasePreparing  Phase = "preparing"
	PhaseSubmitting Phase = "submitting"
	PhaseReviewing  Phase = "reviewing"
	PhasePaused     Phase = "paused"
	PhaseComplete   Phase = "complete"
)

// Teams assigns participant roles to the two Oxford debate sides.
type Teams struct {
	For     []string `json:"for"`
	Against []string `json:"against"`
}

// Discussion is one structured discussion within a project.
// Invariant: at most one active Discussion per project.
type Discussion struct {
	ID               string        `json:"id"`
	ProjectID        string        `json:"project_id"`
	Mode             Mode          `json:"mode"`
	Topic            string        `json:"topic"`
	IsActive         bool          `json:"is_active"`
	Phase            Phase         `json:"phase"`
	Moderator        string        `json:"moderator"`
	Participants     []string      `json:"participants"`
	CurrentRound     int           `json:"current_round"`
	MaxRounds        int           `json:"max_rounds"`
	Timeout          time.Duration `json:"timeout"`
	AutoCloseTimeout time.Duration `json:"auto_close_timeout"`
	Teams            *Teams        `json:"teams,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
}

// StartRequest is the input for creating a discussion.
type StartRequest struct {
	ProjectID    string        `json:"project_id"`
	Mode         Mode          `json:"mode"`
	Topic        string        `json:"topic"`
	Moderator    string        `json:"moderator"`
	Participants []string      `json:"participants"`
	MaxRounds    int           `json:"max_rounds"`
	Timeout      time.Duration `json:"timeout"`
}

// Validate checks the request is well formed.
func (r *StartRequest) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", domain.ErrValidation)
	}
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrValidation)
	}
	switch r.Mode {
	case ModeDelphi, ModeOxford, ModeRedTeam, ModeContinuous:
	case "":
		return fmt.Errorf("%w: mode is required", domain.ErrValidation)
	default:
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, r.Mode)
	}
	if len(r.Participants) == 0 {
		return fmt.Errorf("%w: at least one participant is required", domain.ErrValidation)
	}
	return nil
}

// InitialState returns the phase and round number a new discussion of the
// given mode starts in. Delphi and Red Team wait in PREPARING for an explicit
// first round; Continuous idles in REVIEWING at round 0 until a status post
// triggers it; Oxford (and any future mode) opens round 1 immediately.
func InitialState(mode Mode) (Phase, int) {
	switch mode {
	case ModeDelphi, ModeRedTeam:
		return PhasePreparing, 0
	case ModeContinuous:
		return PhaseReviewing, 0
	default:
		return PhaseSubmitting, 1
	}
}

// CanOpenRound reports whether a new round may be opened in the current phase.
func (d *Discussion) CanOpenRound() error {
	if d.Phase != PhasePreparing && d.Phase != PhaseReviewing {
		return fmt.Errorf("%w: cannot open round in phase %s", domain.ErrConflict, d.Phase)
	}
	if d.MaxRounds > 0 && d.CurrentRound >= d.MaxRounds {
		return fmt.Errorf("%w: max rounds (%d) reached", domain.ErrConflict, d.MaxRounds)
	}
	return nil
}

// CanSubmit reports whether submissions are accepted in the current phase.
func (d *Discussion) CanSubmit() error {
	if d.Phase != PhaseSubmitting {
		return fmt.Errorf("%w: cannot submit in phase %s", domain.ErrConflict, d.Phase)
	}
	return nil
}

// CanCloseRound reports whether the current round may be closed.
func (d *Discussion) CanCloseRound() error {
	if d.Phase != PhaseSubmitting {
		return fmt.Errorf("%w: cannot close round in phase %s", domain.ErrConflict, d.Phase)
	}
	return nil
}

// CanPause reports whether the discussion may move to PAUSED.
func (d *Discussion) CanPause() error {
	if d.Phase != PhaseSubmitting && d.Phase != PhaseReviewing {
		return fmt.Errorf("%w: cannot pause in phase %s", domain.ErrConflict, d.Phase)
	}
	return nil
}

// IsParticipant reports whether role is one of the expected participants.
func (d *Discussion) IsParticipant(role string) bool {
	for _, p := range d.Participants {
		if p == role {
			return true
		}
	}
	return false
}
