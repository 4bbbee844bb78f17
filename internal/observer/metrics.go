package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for inbound event metrics
	eventLabels = []string{"event_type"}
	// Labels for per-department queue metrics
	departmentLabels = []string{"department_id"}

	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_events_received_total",
			Help: "Total number of inbound WhatsApp events received from the stream.",
		},
		eventLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_events_processed_total",
			Help: "Total number of inbound events successfully processed and acknowledged.",
		},
		eventLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_events_failed_total",
			Help: "Total number of inbound events that failed processing.",
		},
		eventLabels,
	)

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontdesk_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "entity", "status"},
	)

	QueueWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "frontdesk_queue_waiting",
			Help: "Current number of users waiting per department queue.",
		},
		departmentLabels,
	)
	QueuePromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_queue_promotions_total",
			Help: "Total number of waiting entries promoted to in_service.",
		},
		departmentLabels,
	)
	QueueAbandonedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_queue_abandoned_total",
			Help: "Total number of queue entries abandoned, labeled by reason.",
		},
		[]string{"department_id", "reason"},
	)
	QueueNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_queue_notifications_total",
			Help: "Total number of position update notifications sent to waiting users.",
		},
		departmentLabels,
	)
	QueueWaitDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontdesk_queue_wait_duration_seconds",
			Help:    "Histogram of time spent waiting before promotion to in_service.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		},
		departmentLabels,
	)

	EngineTickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "frontdesk_engine_tick_duration_seconds",
			Help:    "Histogram of queue engine tick durations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)
	EngineTicksSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_engine_ticks_skipped_total",
			Help: "Total number of poller ticks skipped because the previous tick was still running.",
		},
	)
)

// Metrics related to the outbound send worker pool
var (
	sendTasksSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_send_tasks_submitted_total",
		Help: "Total number of outbound messages submitted to the send pool.",
	})
	sendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontdesk_send_failures_total",
		Help: "Total number of outbound messages that failed to publish.",
	})
	sendWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frontdesk_send_workers_active",
		Help: "Current number of active worker goroutines in the send pool.",
	})
)

// InitMetrics initializes metric collection. Call during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// SetQueueWaiting sets the waiting gauge for a department.
func SetQueueWaiting(departmentID string, count int) {
	if !metricsEnabled {
		return
	}
	QueueWaiting.WithLabelValues(departmentID).Set(float64(count))
}

// IncQueuePromotion increments the promotion counter for a department.
func IncQueuePromotion(departmentID string) {
	if !metricsEnabled {
		return
	}
	QueuePromotionsTotal.WithLabelValues(departmentID).Inc()
}

// IncQueueAbandoned increments the abandoned counter for a department.
func IncQueueAbandoned(departmentID, reason string) {
	if !metricsEnabled {
		return
	}
	QueueAbandonedTotal.WithLabelValues(departmentID, reason).Inc()
}

// IncQueueNotification increments the notification counter for a department.
func IncQueueNotification(departmentID string) {
	if !metricsEnabled {
		return
	}
	QueueNotificationsTotal.WithLabelValues(departmentID).Inc()
}

// ObserveQueueWaitDuration records how long an entry waited before promotion.
func ObserveQueueWaitDuration(departmentID string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	QueueWaitDurationSeconds.WithLabelValues(departmentID).Observe(duration.Seconds())
}

// ObserveEngineTickDuration records the duration of one engine tick.
func ObserveEngineTickDuration(duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EngineTickDurationSeconds.Observe(duration.Seconds())
}

// IncEngineTickSkipped increments the skipped tick counter.
func IncEngineTickSkipped() {
	if !metricsEnabled {
		return
	}
	EngineTicksSkippedTotal.Inc()
}

// IncSendTasksSubmitted increments the counter for messages submitted to the send pool.
func IncSendTasksSubmitted() {
	if !metricsEnabled {
		return
	}
	sendTasksSubmittedTotal.Inc()
}

// IncSendFailure increments the counter for failed outbound publishes.
func IncSendFailure() {
	if !metricsEnabled {
		return
	}
	sendFailuresTotal.Inc()
}

// SetSendWorkersActive sets the current number of active send workers.
func SetSendWorkersActive(count int) {
	if !metricsEnabled {
		return
	}
	sendWorkersActive.Set(float64(count))
}
