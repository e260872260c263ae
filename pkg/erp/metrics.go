package erp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "crm",
	Subsystem: "erp",
	Name:      "request_duration_seconds",
	Help:      "Latency of calls to the remote document API.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "outcome"})
