package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/meetsync/pkg/logger"
)

type stubEngine struct {
	reconciles int32
	autoEnds   int32
	// units of work pretended to be in the queue
	pending int32
}

func (e *stubEngine) ReconcileOnce(context.Context) (bool, error) {
	atomic.AddInt32(&e.reconciles, 1)
	return atomic.AddInt32(&e.pending, -1) >= 0, nil
}

func (e *stubEngine) AutoEndOnce(context.Context) (bool, error) {
	atomic.AddInt32(&e.autoEnds, 1)
	return false, nil
}

func TestRunReconcileDrainsThenStops(t *testing.T) {
	engine := &stubEngine{pending: 3}
	w := New(logger.NewLogger(), engine, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.RunReconcile(ctx)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.reconciles) >= 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconcile loop did not stop on cancel")
	}
}

func TestRunAutoEndStops(t *testing.T) {
	engine := &stubEngine{}
	w := New(logger.NewLogger(), engine, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.RunAutoEnd(ctx)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.autoEnds) >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto-end loop did not stop on cancel")
	}
}
