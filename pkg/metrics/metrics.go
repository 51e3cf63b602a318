package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	annotator = "annotator"

	// Polling metrics
	statusPollsTotal = "status_polls_total"

	// Job metrics
	jobsTotal          = "jobs_total"
	cancellationsTotal = "cancellations_total"

	// Labels
	statusLabel  = "status"
	outcomeLabel = "outcome"
	triggerLabel = "trigger"
)

// Cancellation triggers.
const (
	TriggerUser     = "user"
	TriggerTeardown = "teardown"
)

/**
* Metrics definition
**/
var statusPollsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: annotator,
		Name:      statusPollsTotal,
		Help:      "number of job status checks by observed status",
	},
	[]string{statusLabel},
)

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: annotator,
		Name:      jobsTotal,
		Help:      "number of jobs by final client-side outcome",
	},
	[]string{outcomeLabel},
)

var cancellationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: annotator,
		Name:      cancellationsTotal,
		Help:      "number of cancellation requests sent by trigger",
	},
	[]string{triggerLabel},
)

func IncreaseStatusPollsMetric(status string) {
	statusPollsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func IncreaseJobsMetric(outcome string) {
	jobsTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreaseCancellationsMetric(trigger string) {
	cancellationsTotalMetric.With(prometheus.Labels{triggerLabel: trigger}).Inc()
}

// WriteTextfile dumps every registered metric to filename in the text
// exposition format read by the node exporter textfile collector.
func WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, prometheus.DefaultGatherer)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(statusPollsTotalMetric)
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(cancellationsTotalMetric)
}
