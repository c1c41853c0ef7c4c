package types

import "time"

// SystemActor is recorded for automatic and deadline-driven transitions.
const SystemActor = "system"

// AuditAction names what an audit entry records.
type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditRequestSubmitted AuditAction = "request_submitted"
	AuditStatusChanged    AuditAction = "status_changed"
	AuditVoteCast         AuditAction = "vote_cast"
	AuditVoteChanged      AuditAction = "vote_changed"
	AuditCycleIncremented AuditAction = "cycle_incremented"
	AuditAutoApproved     AuditAction = "auto_approved"
	AuditStageDeadlocked  AuditAction = "stage_deadlocked"
)

// AuditEntry is an immutable record; it is only ever inserted.
type AuditEntry struct {
	ID         string            `json:"id"`
	RequestID  string            `json:"request_id"`
	Action     AuditAction       `json:"action"`
	FromStatus Status            `json:"from_status,omitempty"`
	ToStatus   Status            `json:"to_status,omitempty"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
