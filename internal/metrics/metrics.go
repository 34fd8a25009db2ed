// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "screenscape_sync"

// Outcome labels shared by the link and poll counters.
const (
	OutcomeSuccess   = "success"
	OutcomeNotFound  = "not_found"
	OutcomeExpired   = "expired"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
)

var (
	LinkCodesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "codes_issued_total",
		Help:      "Link code issuance attempts by outcome",
	}, []string{"outcome"})

	LinkCodeCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "code_collisions_total",
		Help:      "Generated link codes that were already reserved",
	})

	DevicesLinked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "devices_linked_total",
		Help:      "Device link attempts by outcome",
	}, []string{"outcome"})

	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "polls_total",
		Help:      "Sync polls by outcome",
	}, []string{"outcome"})

	UserDataWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "user",
		Name:      "data_writes_total",
		Help:      "Successful user data updates",
	})

	ExpiredEntriesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "expired_entries_deleted_total",
		Help:      "Entries removed by the cleanup job",
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	}, []string{"route"})

	EventStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "open_streams",
		Help:      "User data event streams currently open",
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		LinkCodesIssued,
		LinkCodeCollisions,
		DevicesLinked,
		Polls,
		UserDataWrites,
		ExpiredEntriesDeleted,
		RateLimited,
		EventStreams,
		RequestDuration,
	}
}

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
