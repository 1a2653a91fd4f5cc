// Package telemetry records batch-run metrics in a private Prometheus
// registry and writes them as a node-exporter textfile.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

// Recorder holds the metrics of one pipeline run.
type Recorder struct {
	registry *prometheus.Registry

	StageDuration *prometheus.GaugeVec
	StageRuns     *prometheus.CounterVec
	Accuracy      *prometheus.GaugeVec
	Rows          *prometheus.GaugeVec
	Predictions   prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "creditscore_stage_duration_seconds",
				Help: "Duration of the last run of each pipeline stage in seconds",
			},
			[]string{"stage"},
		),

		StageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditscore_stage_runs_total",
				Help: "Pipeline stage executions by result",
			},
			[]string{"stage", "result"},
		),

		Accuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "creditscore_model_accuracy",
				Help: "Held-out accuracy of each model (0.0 to 1.0)",
			},
			[]string{"model"},
		),

		Rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "creditscore_dataset_rows",
				Help: "Rows per dataset of the last run",
			},
			[]string{"dataset"},
		),

		Predictions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "creditscore_new_customer_predictions",
				Help: "Number of new customers scored in the last run",
			},
		),

		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "creditscore_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.StageRuns,
		r.Accuracy,
		r.Rows,
		r.Predictions,
		r.LastSuccess,
	)

	return r
}

// StageTimer tracks execution time for pipeline stages
type StageTimer struct {
	recorder *Recorder
	stage    string
	start    time.Time
}

// StartStage begins timing a pipeline stage
func (r *Recorder) StartStage(stage string) *StageTimer {
	return &StageTimer{recorder: r, stage: stage, start: time.Now()}
}

// Stop records the stage duration and result ("ok" or "error") and returns
// the elapsed time.
func (st *StageTimer) Stop(err error) time.Duration {
	d := time.Since(st.start)
	result := "ok"
	if err != nil {
		result = "error"
	}
	st.recorder.StageDuration.WithLabelValues(st.stage).Set(d.Seconds())
	st.recorder.StageRuns.WithLabelValues(st.stage, result).Inc()

	log.GetLoggerWithName("telemetry").Debug("Pipeline stage completed",
		log.StageKey, st.stage,
		"result", result,
		log.DurationMsKey, d.Milliseconds(),
	)
	return d
}

// SetAccuracy records the held-out accuracy of a model.
func (r *Recorder) SetAccuracy(model string, accuracy float64) {
	r.Accuracy.WithLabelValues(model).Set(accuracy)
}

// SetRows records the row count of a dataset.
func (r *Recorder) SetRows(dataset string, rows int) {
	r.Rows.WithLabelValues(dataset).Set(float64(rows))
}

// SetPredictions records the number of scored new customers.
func (r *Recorder) SetPredictions(n int) {
	r.Predictions.Set(float64(n))
}

// MarkSuccess stamps the end of a successful run.
func (r *Recorder) MarkSuccess() {
	r.LastSuccess.SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
