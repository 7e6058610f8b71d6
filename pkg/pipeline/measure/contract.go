package measure

import "time"

type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

type Metric interface {
	AddDuration(elapsed time.Duration)
	AddOutcome(success bool)
	AVGDuration() time.Duration
	AddTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
	Runs() int64
	Failures() int64
}
