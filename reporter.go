package harness

import (
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/runner"
)

// MetricsReporter is responsible for reporting metrics from a finished run.
type MetricsReporter interface {
	ReportResults(report *runner.Report)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records the bucket counts and duration of the run.
func (r *DefaultMetricsReporter) ReportResults(report *runner.Report) {
	metrics.RecordRun(
		report.Mode,
		report.RunID,
		string(report.Cause),
		report.Counts(),
		report.Duration,
	)
}
