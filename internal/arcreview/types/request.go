package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an architectural request.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSubmitted     Status = "SUBMITTED"
	StatusARCReview     Status = "ARC_REVIEW"
	StatusARCReturned   Status = "ARC_RETURNED"
	StatusARCDenied     Status = "ARC_DENIED"
	StatusARCApproved   Status = "ARC_APPROVED"
	StatusBoardReview   Status = "BOARD_REVIEW"
	StatusBoardReturned Status = "BOARD_RETURNED"
	StatusBoardDenied   Status = "BOARD_DENIED"
	StatusBoardApproved Status = "BOARD_APPROVED"
)

// AllStatuses lists every lifecycle state in declaration order.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusARCReview,
	StatusARCReturned,
	StatusARCDenied,
	StatusARCApproved,
	StatusBoardReview,
	StatusBoardReturned,
	StatusBoardDenied,
	StatusBoardApproved,
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusARCDenied, StatusBoardDenied, StatusBoardApproved:
		return true
	}
	return false
}

// Returned reports whether s hands the request back to its owner.
func (s Status) Returned() bool {
	return s == StatusARCReturned || s == StatusBoardReturned
}

// UnderReview reports whether votes can currently be cast.
func (s Status) UnderReview() bool {
	return s == StatusARCReview || s == StatusBoardReview
}

// Stage projects a status onto the review stage it belongs to.
func (s Status) Stage() Stage {
	switch s {
	case StatusSubmitted, StatusARCReview, StatusARCReturned, StatusARCDenied, StatusARCApproved:
		return StageARC
	case StatusBoardReview, StatusBoardReturned, StatusBoardDenied, StatusBoardApproved:
		return StageBoard
	}
	return StageNone
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	for _, known := range AllStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Stage is the review phase a request occupies.
type Stage string

const (
	StageNone  Stage = ""
	StageARC   Stage = "ARC_REVIEW"
	StageBoard Stage = "BOARD_REVIEW"
)

// ReviewStatus is the status in which votes are accepted for the stage.
func (st Stage) ReviewStatus() Status {
	switch st {
	case StageARC:
		return StatusARCReview
	case StageBoard:
		return StatusBoardReview
	}
	return ""
}

// StatusFor maps a stage outcome to the status it resolves into.
// PENDING and DEADLOCKED have no status and yield "".
func (st Stage) StatusFor(o Outcome) Status {
	switch st {
	case StageARC:
		switch o {
		case OutcomeApproved:
			return StatusARCApproved
		case OutcomeDenied:
			return StatusARCDenied
		case OutcomeReturned:
			return StatusARCReturned
		}
	case StageBoard:
		switch o {
		case OutcomeApproved:
			return StatusBoardApproved
		case OutcomeDenied:
			return StatusBoardDenied
		case OutcomeReturned:
			return StatusBoardReturned
		}
	}
	return ""
}

// ParseStage accepts the full stage name or the short forms "arc" and "board".
func ParseStage(v string) (Stage, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ARC_REVIEW", "ARC", "ARB":
		return StageARC, nil
	case "BOARD_REVIEW", "BOARD":
		return StageBoard, nil
	}
	return StageNone, fmt.Errorf("unknown stage %q", v)
}

// Request is one architectural-modification application.
type Request struct {
	ID              string
	OwnerID         string
	ApplicantName   string
	ApplicantEmail  string
	PropertyAddress string
	Description     string

	Status Status
	Stage  Stage
	Cycle  int

	SubmittedAt        *time.Time
	DeadlineAt         *time.Time
	ResolvedAt         *time.Time
	AutoApprovedReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resolved reports whether the request reached a terminal status.
func (r Request) Resolved() bool { return r.ResolvedAt != nil }

// AutoApproveReasonDeadline marks requests approved by the statutory deadline.
const AutoApproveReasonDeadline = "deadline_expired"
