package types

import (
	"fmt"
	"strings"
	"time"
)

// Choice is a voter's position on a request.
type Choice string

const (
	ChoiceApprove Choice = "APPROVE"
	ChoiceDeny    Choice = "DENY"
	ChoiceReturn  Choice = "RETURN"
	ChoiceAbstain Choice = "ABSTAIN"
)

func ParseChoice(v string) (Choice, error) {
	c := Choice(strings.ToUpper(strings.TrimSpace(v)))
	switch c {
	case ChoiceApprove, ChoiceDeny, ChoiceReturn, ChoiceAbstain:
		return c, nil
	}
	return "", fmt.Errorf("unknown vote %q", v)
}

// Vote is unique per (RequestID, VoterID, Stage, Cycle).
type Vote struct {
	ID        string
	RequestID string
	VoterID   string
	Stage     Stage
	Cycle     int
	Choice    Choice
	Comment   string
	VotedAt   time.Time
	UpdatedAt *time.Time // set only when the vote is revised
}

// Outcome of a stage vote.
type Outcome string

const (
	OutcomePending    Outcome = "PENDING"
	OutcomeApproved   Outcome = "APPROVED"
	OutcomeDenied     Outcome = "DENIED"
	OutcomeReturned   Outcome = "RETURNED"
	OutcomeDeadlocked Outcome = "DEADLOCKED"
)

// Decisive reports whether the outcome drives a status transition.
func (o Outcome) Decisive() bool {
	return o == OutcomeApproved || o == OutcomeDenied || o == OutcomeReturned
}

// Resolution is the tally of one (request, stage, cycle).
type Resolution struct {
	Outcome        Outcome `json:"outcome"`
	ApproveCount   int     `json:"approve_count"`
	DenyCount      int     `json:"deny_count"`
	ReturnCount    int     `json:"return_count"`
	AbstainCount   int     `json:"abstain_count"`
	TotalEligible  int     `json:"total_eligible"`
	ActiveVoters   int     `json:"active_voters"`
	MajorityNeeded int     `json:"majority_needed"`
	AllVotesCast   bool    `json:"all_votes_cast"`
}

// EligibleVoter is computed per request, stage and cycle; never stored.
type EligibleVoter struct {
	VoterID       string  `json:"voter_id"`
	Role          string  `json:"role"`
	Recused       bool    `json:"recused"`
	RecusalReason *string `json:"recusal_reason"`
}

const (
	RecusalRequestOwner     = "request_owner"
	RecusalVotedInARCReview = "voted_in_arc_review"
)
