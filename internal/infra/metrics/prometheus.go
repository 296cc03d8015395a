package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcome labels.
const (
	OutcomeDetected = "detected"
	OutcomeNoPose   = "no_pose"
	OutcomeFailed   = "failed"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dance_analyses_total",
		Help: "Total number of video analyses, by source and status",
	}, []string{"source", "status"})

	AnalysisStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dance_analysis_stage_duration_seconds",
		Help:    "Duration of each stage of the analysis pipeline",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dance_frames_processed_total",
		Help: "Total number of frames run through pose estimation, by outcome",
	}, []string{"outcome"})

	PoseInferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dance_pose_inference_duration_seconds",
		Help:    "Round trip of one pose estimation call",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	QueueDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dance_queue_deliveries_total",
		Help: "Analysis requests taken off the queue, by outcome (ack, nack)",
	}, []string{"outcome"})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dance_active_analyses",
		Help: "Number of analyses currently running",
	})
)
