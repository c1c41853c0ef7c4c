package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// ActorHeader carries the caller's member id. Authentication happens in
// front of this service.
const ActorHeader = "X-Actor-ID"

type createRequestDTO struct {
	OwnerID         string `json:"owner_id" validate:"omitempty,max=128"`
	ApplicantName   string `json:"applicant_name" validate:"required,max=200"`
	ApplicantEmail  string `json:"applicant_email" validate:"omitempty,email"`
	PropertyAddress string `json:"property_address" validate:"required,max=300"`
	Description     string `json:"description" validate:"required,max=4000"`
}

type castVoteDTO struct {
	VoterID string `json:"voter_id" validate:"omitempty,max=128"`
	Stage   string `json:"stage" validate:"required"`
	Choice  string `json:"choice" validate:"required"`
	Comment string `json:"comment" validate:"max=2000"`
	Cycle   int    `json:"cycle" validate:"gte=0"`
}

type transitionDTO struct {
	To     string `json:"to" validate:"required"`
	Reason string `json:"reason" validate:"max=2000"`
}

type requestView struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"owner_id"`
	ApplicantName      string     `json:"applicant_name"`
	ApplicantEmail     string     `json:"applicant_email,omitempty"`
	PropertyAddress    string     `json:"property_address"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	Stage              string     `json:"stage,omitempty"`
	Cycle              int        `json:"cycle"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	DeadlineAt         *time.Time `json:"deadline_at,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	AutoApprovedReason *string    `json:"auto_approved_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toRequestView(r types.Request) requestView {
	return requestView{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		ApplicantName:      r.ApplicantName,
		ApplicantEmail:     r.ApplicantEmail,
		PropertyAddress:    r.PropertyAddress,
		Description:        r.Description,
		Status:             string(r.Status),
		Stage:              string(r.Stage),
		Cycle:              r.Cycle,
		SubmittedAt:        r.SubmittedAt,
		DeadlineAt:         r.DeadlineAt,
		ResolvedAt:         r.ResolvedAt,
		AutoApprovedReason: r.AutoApprovedReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toRequestViews(rs []types.Request) []requestView {
	out := make([]requestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestView(r))
	}
	return out
}

type voteView struct {
	ID        string     `json:"id"`
	VoterID   string     `json:"voter_id"`
	Stage     string     `json:"stage"`
	Cycle     int        `json:"cycle"`
	Choice    string     `json:"choice"`
	Comment   string     `json:"comment,omitempty"`
	VotedAt   time.Time  `json:"voted_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toVoteViews(vs []types.Vote) []voteView {
	out := make([]voteView, 0, len(vs))
	for _, v := range vs {
		out = append(out, voteView{
			ID:        v.ID,
			VoterID:   v.VoterID,
			Stage:     string(v.Stage),
			Cycle:     v.Cycle,
			Choice:    string(v.Choice),
			Comment:   v.Comment,
			VotedAt:   v.VotedAt,
			UpdatedAt: v.UpdatedAt,
		})
	}
	return out
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// actor resolves the caller from ActorHeader, falling back to an id named
// in the body. Both present and different is an error.
func actor(r *http.Request, fromBody string) (string, error) {
	header := strings.TrimSpace(r.Header.Get(ActorHeader))
	fromBody = strings.TrimSpace(fromBody)
	switch {
	case header == "":
		return fromBody, nil
	case fromBody == "" || fromBody == header:
		return header, nil
	}
	return "", fmt.Errorf("body names %q but %s is %q", fromBody, ActorHeader, header)
}

// stageParam parses ?stage=. Empty yields StageNone.
func stageParam(r *http.Request) (types.Stage, error) {
	v := strings.TrimSpace(r.URL.Query().Get("stage"))
	if v == "" {
		return types.StageNone, nil
	}
	return types.ParseStage(v)
}

// intParam parses a non-negative integer query parameter, returning def
// when it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
