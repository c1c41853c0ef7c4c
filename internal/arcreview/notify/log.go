package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher writes events to the log. It is the default backend when no
// delivery collaborator is configured.
type LogDispatcher struct {
	log *logrus.Logger
}

func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, ev Event) error {
	fields := logrus.Fields{
		"event":      ev.Type,
		"request_id": ev.RequestID,
	}
	if ev.Stage != "" {
		fields["stage"] = ev.Stage
	}
	if ev.Cycle != 0 {
		fields["cycle"] = ev.Cycle
	}
	if ev.Status != "" {
		fields["status"] = ev.Status
	}
	if ev.Outcome != "" {
		fields["outcome"] = ev.Outcome
	}
	if ev.ActorID != "" {
		fields["actor_id"] = ev.ActorID
	}
	if ev.DeadlineAt != nil {
		fields["deadline_at"] = ev.DeadlineAt.Format("2006-01-02T15:04:05Z07:00")
		fields["days_out"] = ev.DaysOut
	}
	d.log.WithFields(fields).Info("notification")
	return nil
}
