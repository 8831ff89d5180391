package domain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_events_received_total",
	Help: "Events read from the source, by kind",
}, []string{"kind"})

var eventsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_events_written_total",
	Help: "Events whose rows were fully written, by kind",
}, []string{"kind"})

var eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_events_failed_total",
	Help: "Events dead-lettered, by kind and stage",
}, []string{"kind", "stage"})

var blobsMissingSize = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_blobs_missing_size_total",
	Help: "Blobs stored with a null size because the record carried none",
})

var writeRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_write_retries_total",
	Help: "Write attempts retried after a transient store failure",
}, []string{"op"})

var writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_write_failures_total",
	Help: "Writes that failed after retries",
}, []string{"op"})

var writeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ingest_write_duration_seconds",
	Help:    "Time spent on one logical write, retries included",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
}, []string{"op"})
