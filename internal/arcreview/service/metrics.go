package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "votes_cast_total",
		Help:      "Votes recorded, including revisions.",
	}, []string{"stage", "choice"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "transitions_total",
		Help:      "Request status transitions committed.",
	}, []string{"from", "to"})

	autoApprovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "auto_approvals_total",
		Help:      "Stages approved because the review deadline elapsed.",
	}, []string{"stage"})

	deadlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "deadlocks_total",
		Help:      "Stages that reached DEADLOCKED.",
	}, []string{"stage"})

	auditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "audit_append_failures_total",
		Help:      "Audit entries that could not be appended after commit.",
	})

	storageConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcreview",
		Name:      "storage_conflicts_total",
		Help:      "Compare-and-swap misses on request status.",
	}, []string{"op"})
)
