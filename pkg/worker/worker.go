package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Engine interface {
	ReconcileOnce(ctx context.Context) (bool, error)
	AutoEndOnce(ctx context.Context) (bool, error)
}

type Worker struct {
	log          *logrus.Entry
	engine       Engine
	pollInterval time.Duration
}

func New(log *logrus.Logger, engine Engine, pollInterval time.Duration) *Worker {
	return &Worker{
		log:          log.WithField("component", "worker"),
		engine:       engine,
		pollInterval: pollInterval,
	}
}

// RunReconcile polls for meeting work until ctx is canceled. When a unit
// was found it polls again immediately, draining the queue before idling.
// Store errors are logged and waited out rather than crashing the loop;
// any number of these loops may run concurrently across processes.
func (w *Worker) RunReconcile(ctx context.Context) {
	for {
		worked, err := w.engine.ReconcileOnce(ctx)
		if err != nil {
			w.log.Errorf("reconcile failed: %v", err)
		}
		if worked && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.log.Info("reconcile worker stopped")
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// RunAutoEnd polls for meetings overdue for a provider-side end check.
func (w *Worker) RunAutoEnd(ctx context.Context) {
	for {
		worked, err := w.engine.AutoEndOnce(ctx)
		if err != nil {
			w.log.Errorf("auto-end check failed: %v", err)
		}
		if worked && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.log.Info("auto-end worker stopped")
			return
		case <-time.After(w.pollInterval):
		}
	}
}
