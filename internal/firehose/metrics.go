package firehose

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_firehose_messages_received_total",
	Help: "Jetstream messages read from the websocket",
})

var decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_firehose_decode_errors_total",
	Help: "Jetstream messages that could not be decoded",
})

var reconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_firehose_reconnects_total",
	Help: "Reconnects after a websocket read error",
})

var currentCursor = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingest_firehose_cursor",
	Help: "time_us of the most recent Jetstream event",
})
