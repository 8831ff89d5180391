package scylla

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var writes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_scylla_writes_total",
	Help: "Successful writes to scylla, by table",
}, []string{"table"})

var writeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_scylla_write_errors_total",
	Help: "Failed writes to scylla, by table and error class",
}, []string{"table", "class"})

// 10µs doubling up to ~1.3s.
var writeTimes = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ingest_scylla_write_times",
	Help:    "Round trip time of one scylla write",
	Buckets: prometheus.ExponentialBuckets(0.000_010, 2, 18),
}, []string{"table"})
