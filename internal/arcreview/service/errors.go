package service

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotEligible       = errors.New("voter not eligible")
	ErrWrongStage        = errors.New("request is not in that stage")
	ErrAlreadyResolved   = errors.New("stage already resolved")
	ErrDeadlocked        = errors.New("stage deadlocked: every eligible voter abstained")
	ErrConflict          = errors.New("concurrent update, try again")

	ErrRequestNotFound = errors.New("request not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotOwner        = errors.New("only the request owner may do this")
)

// TransitionError is returned for an edge missing from the transition table.
// A legal edge refused because of the stage's voting state carries Reason.
type TransitionError struct {
	From   types.Status
	To     types.Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Eligibility failure reasons besides the recusal reasons in types.
const (
	ReasonNotReviewer = "not_a_stage_reviewer"
)

type EligibilityError struct {
	VoterID string
	Stage   types.Stage
	Reason  string
}

func (e *EligibilityError) Error() string {
	switch e.Reason {
	case types.RecusalRequestOwner:
		return fmt.Sprintf("voter %s is recused from %s: owns the request", e.VoterID, e.Stage)
	case types.RecusalVotedInARCReview:
		return fmt.Sprintf("voter %s is recused from %s: already voted in ARC review this cycle", e.VoterID, e.Stage)
	}
	return fmt.Sprintf("voter %s does not hold an active %s reviewer role", e.VoterID, e.Stage)
}

func (e *EligibilityError) Is(target error) bool { return target == ErrNotEligible }

// StageError reports a vote against a stage or cycle the request is not
// accepting votes for. It matches ErrAlreadyResolved when that stage has
// been decided, ErrDeadlocked when it is waiting on a manual decision, and
// ErrWrongStage otherwise.
type StageError struct {
	Stage        types.Stage
	Cycle        int
	Status       types.Status
	CurrentCycle int
	Resolved     bool
	Deadlocked   bool
}

func (e *StageError) Error() string {
	if e.Deadlocked {
		return fmt.Sprintf("%s voting for cycle %d is deadlocked and awaits a manual decision", e.Stage, e.Cycle)
	}
	if e.Resolved {
		return fmt.Sprintf("%s voting for cycle %d is closed (request is %s, cycle %d)",
			e.Stage, e.Cycle, e.Status, e.CurrentCycle)
	}
	return fmt.Sprintf("request is %s in cycle %d, not accepting %s votes for cycle %d",
		e.Status, e.CurrentCycle, e.Stage, e.Cycle)
}

func (e *StageError) Is(target error) bool {
	if e.Deadlocked {
		return target == ErrDeadlocked
	}
	if e.Resolved {
		return target == ErrAlreadyResolved
	}
	return target == ErrWrongStage
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
