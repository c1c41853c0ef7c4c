package httpapi

import (
	"net/http"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestDTO
	if !s.decodeJSON(w, r, &body) {
		return
	}
	owner, err := actor(r, body.OwnerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	req, err := s.workflow.CreateRequest(r.Context(), service.NewRequest{
		OwnerID:         owner,
		ApplicantName:   body.ApplicantName,
		ApplicantEmail:  body.ApplicantEmail,
		PropertyAddress: body.PropertyAddress,
		Description:     body.Description,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestView(req))
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.workflow.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r, "")
	req, err := s.workflow.Submit(r.Context(), r.PathValue("id"), who)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var body castVoteDTO
	if !s.decodeJSON(w, r, &body) {
		return
	}
	voter, err := actor(r, body.VoterID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	stage, err := types.ParseStage(body.Stage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	choice, err := types.ParseChoice(body.Choice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	res, err := s.workflow.CastVote(r.Context(), service.Ballot{
		RequestID: r.PathValue("id"),
		VoterID:   voter,
		Stage:     stage,
		Choice:    choice,
		Comment:   body.Comment,
		Cycle:     body.Cycle,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case res.Outcome == types.OutcomeDeadlocked:
		// The vote is stored; the stage now needs a manual decision.
		writeJSON(w, http.StatusConflict, errorBody{Error: "deadlocked", Message: err.Error(), Resolution: &res})
	default:
		s.writeServiceError(w, r, err)
	}
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	stage, err := stageParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	cycle, err := intParam(r, "cycle", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	votes, err := s.workflow.ListVotes(r.Context(), r.PathValue("id"), stage, cycle)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": toVoteViews(votes)})
}

func (s *Server) handleEligibleVoters(w http.ResponseWriter, r *http.Request) {
	stage, err := stageParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	cycle, err := intParam(r, "cycle", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	voters, err := s.workflow.EligibleVoters(r.Context(), r.PathValue("id"), stage, cycle)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if voters == nil {
		voters = []types.EligibleVoter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"eligible_voters": voters,
		"eligible_count":  service.CountEligible(voters),
	})
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	stage, err := stageParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	cycle, err := intParam(r, "cycle", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	res, err := s.workflow.ResolveOutcome(r.Context(), r.PathValue("id"), stage, cycle)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionDTO
	if !s.decodeJSON(w, r, &body) {
		return
	}
	to, err := types.ParseStatus(body.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	who, _ := actor(r, "")
	req, err := s.workflow.Transition(r.Context(), r.PathValue("id"), to, who, body.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.workflow.GetAuditHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleApplyDeadlines(w http.ResponseWriter, r *http.Request) {
	applied, err := s.workflow.ApplyExpiredDeadlines(r.Context())
	if applied == nil {
		applied = []string{}
	}
	if err != nil {
		// Some requests may have been approved before the failure.
		s.logger.WithError(err).WithField("applied", applied).Error("apply deadlines")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":         "internal_error",
			"message":       "deadline sweep did not complete",
			"auto_approved": applied,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auto_approved": applied})
}

func (s *Server) handleUpcomingDeadlines(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", s.warningDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	reqs, err := s.workflow.RequestsNearingDeadline(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "requests": toRequestViews(reqs)})
}

func (s *Server) handleWarnDeadlines(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", s.warningDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	sent, err := s.workflow.WarnNearingDeadlines(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "sent": sent})
}
