package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RPC Metrics
var (
	MulticallBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMulticallBatches,
			Help: HelpTextMulticallBatches,
		},
	)

	MulticallCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMulticallCalls,
			Help: HelpTextMulticallCalls,
		},
	)

	MulticallFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMulticallFailures,
			Help: HelpTextMulticallFailures,
		},
	)

	RPCThrottleWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameRPCThrottleWait,
			Help:    HelpTextRPCThrottleWait,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
)

// Computation Metrics
var (
	TwabWindowFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameTwabWindowFetches,
			Help: HelpTextTwabWindowFetches,
		},
	)

	DroppedUsers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameDroppedUsers,
			Help: HelpTextDroppedUsers,
		},
	)

	WinsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWinsFound,
			Help: HelpTextWinsFound,
		},
		[]string{LabelTier},
	)

	ComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameComputeDuration,
			Help:    HelpTextComputeDuration,
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	ComputeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameComputeRuns,
			Help: HelpTextComputeRuns,
		},
		[]string{LabelOutcome},
	)
)
