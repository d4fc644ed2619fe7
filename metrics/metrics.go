package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	MetricsNamespace = "harness"
)

var (
	Debug                bool
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	tasksDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tasks_dispatched_total",
		Help:      "Number of tasks handed to a worker",
	}, []string{
		"mode",
		"run_id",
	})

	outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Number of finished tasks per result",
	}, []string{
		"mode",
		"run_id",
		"result",
	})

	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "task_duration_seconds",
		Help:      "Wall clock duration of executed tasks",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"mode",
		"result",
	})

	tasksInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "tasks_in_flight",
		Help:      "Number of tasks currently executing",
	}, []string{
		"mode",
	})

	runResults = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Task counts of a finished run per result",
	}, []string{
		"mode",
		"run_id",
		"result",
	})

	runDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a finished run",
	}, []string{
		"mode",
		"run_id",
		"cause",
	})
)

// Collectors returns every collector of the package, for registration on
// the registry served by the metrics server.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		errorsTotal,
		tasksDispatchedTotal,
		outcomesTotal,
		taskDuration,
		tasksInFlight,
		runResults,
		runDuration,
	}
}

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordDispatch(mode types.Mode, runID string) {
	tasksDispatchedTotal.WithLabelValues(string(mode), runID).Inc()
	tasksInFlight.WithLabelValues(string(mode)).Inc()
}

func RecordOutcome(mode types.Mode, runID string, result types.ResultStatus, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordOutcome - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "outcomes_total",
			"mode", mode,
			"run_id", runID,
			"result", result)
	}
	tasksInFlight.WithLabelValues(string(mode)).Dec()
	outcomesTotal.WithLabelValues(string(mode), runID, string(result)).Inc()
	taskDuration.WithLabelValues(string(mode), string(result)).Observe(duration.Seconds())
}

func RecordRun(mode types.Mode, runID string, cause string, counts map[types.ResultStatus]int, duration time.Duration) {
	for _, result := range types.ResultStatuses {
		runResults.WithLabelValues(string(mode), runID, string(result)).Set(float64(counts[result]))
	}
	runDuration.WithLabelValues(string(mode), runID, cause).Set(duration.Seconds())
}

func isValidResult(result types.ResultStatus) bool {
	return slices.Contains(types.ResultStatuses, result)
}
