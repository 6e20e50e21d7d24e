package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Consumer metrics
	messagesTotal   *prometheus.CounterVec
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	// Triggering metrics
	triggeringsTotal *prometheus.CounterVec
	duplicatesTotal  *prometheus.CounterVec
	mergesTotal      *prometheus.CounterVec
	stoppedTotal     prometheus.Counter

	// Scheduler metrics
	scheduledRunsTotal      prometheus.Counter
	scheduledRunErrorsTotal prometheus.Counter
	scheduledEnqueuedTotal  prometheus.Counter
	scheduledRunDuration    prometheus.Histogram
	scheduledRetiredTotal   prometheus.Counter

	// EventBus metrics
	bufferSize      prometheus.Gauge
	emitErrorsTotal prometheus.Counter

	// Enqueuer metrics
	executionsQueuedTotal prometheus.Counter

	// Leader election metrics
	isLeader prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initConsumerMetrics(reg)
	s.initTriggeringMetrics(reg)
	s.initSchedulerMetrics(reg)
	s.initInfraMetrics(reg)
	return s
}

func (s *PrometheusSink) initConsumerMetrics(reg prometheus.Registerer) {
	s.messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrigger_consumer_messages_total",
		Help: "Total number of consumed messages by source and outcome.",
	}, []string{"source", "outcome"})
	s.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrigger_consumer_commands_total",
		Help: "Total number of executed commands by kind and result.",
	}, []string{"kind", "result"})
	s.commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subtrigger_consumer_command_duration_seconds",
		Help:    "Command execution latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"})
	s.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subtrigger_consumer_messages_in_flight",
		Help: "Number of messages currently being processed.",
	})

	s.register(reg, s.messagesTotal, "subtrigger_consumer_messages_total")
	s.register(reg, s.commandsTotal, "subtrigger_consumer_commands_total")
	s.register(reg, s.commandDuration, "subtrigger_consumer_command_duration_seconds")
	s.register(reg, s.inFlight, "subtrigger_consumer_messages_in_flight")
}

func (s *PrometheusSink) initTriggeringMetrics(reg prometheus.Registerer) {
	s.triggeringsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrigger_triggerings_created_total",
		Help: "Total number of triggered subscriptions created.",
	}, []string{"source"})
	s.duplicatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrigger_triggerings_duplicates_total",
		Help: "Total number of triggerings dropped as duplicates.",
	}, []string{"source"})
	s.mergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrigger_triggerings_merged_total",
		Help: "Total number of events merged into an open triggering.",
	}, []string{"source"})
	s.stoppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_triggerings_stopped_total",
		Help: "Total number of triggered subscriptions stopped.",
	})

	s.register(reg, s.triggeringsTotal, "subtrigger_triggerings_created_total")
	s.register(reg, s.duplicatesTotal, "subtrigger_triggerings_duplicates_total")
	s.register(reg, s.mergesTotal, "subtrigger_triggerings_merged_total")
	s.register(reg, s.stoppedTotal, "subtrigger_triggerings_stopped_total")
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.scheduledRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_scheduler_runs_total",
		Help: "Total number of scheduled triggering runs.",
	})
	s.scheduledRunErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_scheduler_run_errors_total",
		Help: "Total number of scheduled triggering runs that failed.",
	})
	s.scheduledEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_scheduler_subscriptions_enqueued_total",
		Help: "Total number of scheduled subscriptions enqueued for triggering.",
	})
	s.scheduledRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "subtrigger_scheduler_run_duration_seconds",
		Help:    "Duration of each scheduled triggering run in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.scheduledRetiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_scheduler_subscriptions_retired_total",
		Help: "Total number of scheduled subscriptions retired after their validity ended.",
	})

	s.register(reg, s.scheduledRunsTotal, "subtrigger_scheduler_runs_total")
	s.register(reg, s.scheduledRunErrorsTotal, "subtrigger_scheduler_run_errors_total")
	s.register(reg, s.scheduledEnqueuedTotal, "subtrigger_scheduler_subscriptions_enqueued_total")
	s.register(reg, s.scheduledRunDuration, "subtrigger_scheduler_run_duration_seconds")
	s.register(reg, s.scheduledRetiredTotal, "subtrigger_scheduler_subscriptions_retired_total")
}

func (s *PrometheusSink) initInfraMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subtrigger_eventbus_buffer_size",
		Help: "Current number of messages in the event bus buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})
	s.executionsQueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtrigger_enqueuer_executions_queued_total",
		Help: "Total number of subscription executions handed to the dispatcher.",
	})
	s.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subtrigger_leader_is_leader",
		Help: "1 if this instance holds the leader lock, 0 otherwise.",
	})

	s.register(reg, s.bufferSize, "subtrigger_eventbus_buffer_size")
	s.register(reg, s.emitErrorsTotal, "subtrigger_eventbus_emit_errors_total")
	s.register(reg, s.executionsQueuedTotal, "subtrigger_enqueuer_executions_queued_total")
	s.register(reg, s.isLeader, "subtrigger_leader_is_leader")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Consumer metrics implementation

func (s *PrometheusSink) MessageConsumed(source, outcome string) {
	s.messagesTotal.WithLabelValues(source, outcome).Inc()
}

func (s *PrometheusSink) CommandExecuted(kind string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.commandsTotal.WithLabelValues(kind, result).Inc()
	s.commandDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (s *PrometheusSink) MessagesInFlightIncr() {
	s.inFlight.Inc()
}

func (s *PrometheusSink) MessagesInFlightDecr() {
	s.inFlight.Dec()
}

// Triggering metrics implementation

func (s *PrometheusSink) TriggeringCreated(source string) {
	s.triggeringsTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) DuplicateSuppressed(source string) {
	s.duplicatesTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) TriggeringMerged(source string) {
	s.mergesTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) TriggeringsStopped(count int) {
	s.stoppedTotal.Add(float64(count))
}

// Scheduler metrics implementation

func (s *PrometheusSink) ScheduledRunCompleted(duration time.Duration, enqueued int, err error) {
	s.scheduledRunsTotal.Inc()
	s.scheduledRunDuration.Observe(duration.Seconds())
	s.scheduledEnqueuedTotal.Add(float64(enqueued))
	if err != nil {
		s.scheduledRunErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) ScheduledSubscriptionRetired() {
	s.scheduledRetiredTotal.Inc()
}

// Infrastructure metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

func (s *PrometheusSink) ExecutionsQueued(count int) {
	s.executionsQueuedTotal.Add(float64(count))
}

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.isLeader.Set(1)
		return
	}
	s.isLeader.Set(0)
}
