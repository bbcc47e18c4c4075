package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burngate_transfers_total",
		Help: "The total number of transfer submissions processed",
	}, []string{"status", "network"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "burngate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ValidationRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burngate_validation_rejects_total",
		Help: "Total requests rejected before any chain interaction",
	}, []string{"reason"})
)
