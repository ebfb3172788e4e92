package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_events_ingested_total",
		Help: "Total number of events accepted by the broadcast engine, labelled by source.",
	}, []string{"source"})

	IngestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_ingest_rejected_total",
		Help: "Total number of ingestion attempts rejected, labelled by reason.",
	}, []string{"reason"})

	FramesBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_frames_broadcast_total",
		Help: "Total number of frames handed to the subscriber registry, labelled by kind.",
	}, []string{"kind"})

	DeliveriesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_deliveries_dropped_total",
		Help: "Total number of per-subscriber deliveries that were discarded, labelled by reason.",
	}, []string{"reason"})

	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_active_subscribers",
		Help: "Current number of registered live subscribers across all merchants.",
	})

	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_connections_total",
		Help: "Total number of stream connections, labelled by transport and outcome.",
	}, []string{"transport", "outcome"})

	TokensMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_tokens_minted_total",
		Help: "Total number of merchant credentials issued.",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_ingest_duration_ms",
		Help:    "Time spent appending and fanning out one event, in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})
)
