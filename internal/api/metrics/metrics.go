// Package metrics defines and registers all custom Prometheus metrics for
// the identity registration service. It is the single source of truth for
// metric names, labels, and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the HTTP layer exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Registration metrics ──────────────────────────────────────────────────────

// RegistrationsStartedTotal counts draft identities created.
// Label:
//   - role: the requested role (e.g. "patient")
var RegistrationsStartedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_started_total",
		Help:      "Total number of draft identities created.",
	},
	[]string{"role"},
)

// OtpConfirmationsTotal counts OTP confirmation attempts.
// Label:
//   - result: "ok" or "invalid"
var OtpConfirmationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_confirmations_total",
		Help:      "Total number of OTP confirmation attempts, by result.",
	},
	[]string{"result"},
)

// PromotionsTotal counts promotion attempts.
// Label:
//   - result: "promoted", "precondition_failed", "already_verified", "conflict", "error"
var PromotionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotions_total",
		Help:      "Total number of draft promotion attempts, by result.",
	},
	[]string{"result"},
)

// OcrExtractionsTotal counts synchronous OCR extractions.
// Label:
//   - outcome: "succeeded", "manual_review", "error"
var OcrExtractionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ocr_extractions_total",
		Help:      "Total number of OCR document extractions, by outcome.",
	},
	[]string{"outcome"},
)

// ── Background task metrics ───────────────────────────────────────────────────

// TasksEnqueuedTotal counts tasks accepted by the runner.
// Label:
//   - kind: task kind (e.g. "face_enrollment")
var TasksEnqueuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_enqueued_total",
		Help:      "Total number of background tasks enqueued, by kind.",
	},
	[]string{"kind"},
)

// TaskAttemptsTotal counts individual task executions including retries.
// Label:
//   - kind: task kind
var TaskAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_attempts_total",
		Help:      "Total number of background task attempts, by kind.",
	},
	[]string{"kind"},
)

// TasksExhaustedTotal counts tasks that reached a terminal failure.
// Label:
//   - kind: task kind
var TasksExhaustedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_exhausted_total",
		Help:      "Total number of background tasks that failed terminally, by kind.",
	},
	[]string{"kind"},
)

// TaskQueueDepth tracks the current number of tasks waiting in the runner.
var TaskQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "task_queue_depth",
		Help:      "Current number of background tasks pending in the runner channel.",
	},
)

// ── Cleanup metrics ───────────────────────────────────────────────────────────

// DraftsReclaimedTotal counts stale drafts removed by the cleanup sweep.
var DraftsReclaimedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drafts_reclaimed_total",
		Help:      "Total number of stale draft identities removed by the cleanup sweep.",
	},
)
