package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DequeueCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetsync",
		Subsystem: "reconcile",
		Name:      "dequeue_count",
	}, []string{"kind", "outcome"})
	ProviderErrCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetsync",
		Subsystem: "provider",
		Name:      "err_count",
	}, []string{"op"})
	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meetsync",
		Subsystem: "provider",
		Name:      "duration",
	}, []string{"op"})
	HostAllocCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetsync",
		Subsystem: "allocator",
		Name:      "alloc_count",
	}, []string{"outcome"})
	AutoEndCheckCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetsync",
		Subsystem: "autoend",
		Name:      "check_count",
	}, []string{"outcome"})
)
