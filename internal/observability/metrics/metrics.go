package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "wms_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	telegramsDecoded *prometheus.CounterVec
	stateChanges     *prometheus.CounterVec

	reservations    *prometheus.CounterVec
	acknowledgement *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	allocLatency    *prometheus.HistogramVec

	commandsTotal   *prometheus.CounterVec
	commandsLatency *prometheus.HistogramVec

	outboxPublishTotal   *prometheus.CounterVec
	outboxPublishLatency *prometheus.HistogramVec
	outboxDispatchTotal  *prometheus.CounterVec
	outboxDispatchSize   *prometheus.CounterVec
	outboxDispatchTime   *prometheus.HistogramVec
	brokerRetries        *prometheus.CounterVec

	replicaCallbacks *prometheus.CounterVec
	consumerLag      *prometheus.GaugeVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		telegramsDecoded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telegrams_decoded_total",
				Help: "Total decoded PLC telegrams by target and result",
			},
			[]string{"target", "result"},
		)
		stateChanges = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "state_changes_total",
				Help: "Total state change applications by entity and outcome",
			},
			[]string{"entity", "outcome"},
		)

		reservations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservations_total",
				Help: "Total reservation attempts by outcome",
			},
			[]string{"outcome"},
		)
		acknowledgement = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservation_acknowledgements_total",
				Help: "Total reservation acknowledgements by outcome",
			},
			[]string{"outcome"},
		)
		allocations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocations_total",
				Help: "Total allocation requests by outcome",
			},
			[]string{"outcome"},
		)
		allocLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "allocation_latency_seconds",
				Help:    "Allocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total inbound commands by type and outcome",
			},
			[]string{"type", "outcome"},
		)
		commandsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "command_latency_seconds",
				Help:    "Inbound command handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		)

		outboxPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_publish_total",
				Help: "Total outbox inserts by result",
			},
			[]string{"result"},
		)
		outboxPublishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_publish_latency_seconds",
				Help:    "Outbox insert latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Total outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchSize = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_records_total",
				Help: "Total dispatched outbox records by status",
			},
			[]string{"status"},
		)
		outboxDispatchTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		brokerRetries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broker_publish_retries_total",
				Help: "Total broker publish retries by stream",
			},
			[]string{"stream"},
		)

		replicaCallbacks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "replica_callbacks_total",
				Help: "Total replica removal callbacks by kind and result",
			},
			[]string{"kind", "result"},
		)
		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			telegramsDecoded,
			stateChanges,
			reservations,
			acknowledgement,
			allocations,
			allocLatency,
			commandsTotal,
			commandsLatency,
			outboxPublishTotal,
			outboxPublishLatency,
			outboxDispatchTotal,
			outboxDispatchSize,
			outboxDispatchTime,
			brokerRetries,
			replicaCallbacks,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncTelegram counts a decoded telegram.
func IncTelegram(target, result string) {
	if result == "" {
		result = resultSuccess
	}
	if telegramsDecoded != nil {
		telegramsDecoded.WithLabelValues(target, result).Inc()
	}
}

// IncStateChange counts a state change application.
func IncStateChange(entity string, changed bool) {
	outcome := OutcomeUnchanged
	if changed {
		outcome = OutcomeChanged
	}
	if stateChanges != nil {
		stateChanges.WithLabelValues(entity, outcome).Inc()
	}
}

// IncReservation counts a reservation attempt.
func IncReservation(outcome string) {
	if reservations != nil {
		reservations.WithLabelValues(outcome).Inc()
	}
}

// IncAcknowledgement counts a reservation acknowledgement.
func IncAcknowledgement(outcome string) {
	if acknowledgement != nil {
		acknowledgement.WithLabelValues(outcome).Inc()
	}
}

// ObserveAllocation records allocation latency and outcome.
func ObserveAllocation(outcome string, duration time.Duration) {
	if allocations != nil {
		allocations.WithLabelValues(outcome).Inc()
	}
	if allocLatency != nil {
		allocLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveCommand records command handling outcome and latency.
func ObserveCommand(commandType, outcome string, duration time.Duration) {
	if commandType == "" {
		commandType = "unknown"
	}
	if commandsTotal != nil {
		commandsTotal.WithLabelValues(commandType, outcome).Inc()
	}
	if commandsLatency != nil {
		commandsLatency.WithLabelValues(commandType).Observe(duration.Seconds())
	}
}

// ObserveOutboxPublish records outbox insert latency and result.
func ObserveOutboxPublish(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if outboxPublishTotal != nil {
		outboxPublishTotal.WithLabelValues(result).Inc()
	}
	if outboxPublishLatency != nil {
		outboxPublishLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveOutboxDispatch records a dispatch run.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	if result == "" {
		result = resultSuccess
	}
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchTime != nil {
		outboxDispatchTime.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxDispatchSize != nil {
		outboxDispatchSize.WithLabelValues("sent").Add(float64(sent))
		outboxDispatchSize.WithLabelValues("failed").Add(float64(failed))
		outboxDispatchSize.WithLabelValues("dlq").Add(float64(dlq))
	}
}

// IncBrokerRetry counts a broker publish retry.
func IncBrokerRetry(stream string) {
	if brokerRetries != nil {
		brokerRetries.WithLabelValues(stream).Inc()
	}
}

// IncReplicaCallback counts a replica callback.
func IncReplicaCallback(kind, result string) {
	if replicaCallbacks != nil {
		replicaCallbacks.WithLabelValues(kind, result).Inc()
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"

	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeMatched  = "matched"
	OutcomeNoop     = "noop"

	OutcomeAllocated = "allocated"
	OutcomeEmpty     = "empty"

	OutcomeCommitted = "committed"
	OutcomeDuplicate = "duplicate"
)
