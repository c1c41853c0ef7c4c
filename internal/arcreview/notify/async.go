package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arcreview",
	Name:      "notification_failures_total",
	Help:      "Notifications that could not be handed to the delivery collaborator.",
}, []string{"event"})

const DefaultTimeout = 5 * time.Second

// Async dispatches each event on its own goroutine with a timeout, so the
// caller never waits on delivery. Dispatch always returns nil.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	log     *logrus.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Dispatcher, timeout time.Duration, log *logrus.Logger) *Async {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Async{next: next, timeout: timeout, log: log}
}

func (a *Async) Dispatch(ctx context.Context, ev Event) error {
	// Detach from the caller: the request that produced the event is
	// usually finished before delivery runs.
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				a.fail(ev, fmt.Errorf("panic: %v", p))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.next.Dispatch(ctx, ev); err != nil {
			a.fail(ev, err)
		}
	}()
	return nil
}

// Wait blocks until every in-flight dispatch has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) fail(ev Event, err error) {
	dispatchFailures.WithLabelValues(string(ev.Type)).Inc()
	a.log.WithFields(logrus.Fields{
		"event":      ev.Type,
		"request_id": ev.RequestID,
	}).WithError(err).Warn("notification dispatch failed")
}
