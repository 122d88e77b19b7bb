package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "cipherstudio"

// Metrics holds all workspace metric instruments.
type Metrics struct {
	FilesChanged   metric.Int64Counter
	CodeUpdates    metric.Int64Counter
	Previews       metric.Int64Counter
	ProjectSaves   metric.Int64Counter
	AutosaveFlush  metric.Int64Counter
	PreviewLatency metric.Float64Histogram
	SaveLatency    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FilesChanged, err = meter.Int64Counter("cipherstudio.files.changed",
		metric.WithDescription("Number of file tree mutations (add, rename, delete)"))
	if err != nil {
		return nil, err
	}

	m.CodeUpdates, err = meter.Int64Counter("cipherstudio.code.updates",
		metric.WithDescription("Number of file content edits"))
	if err != nil {
		return nil, err
	}

	m.Previews, err = meter.Int64Counter("cipherstudio.previews.synthesized",
		metric.WithDescription("Number of preview documents synthesized"))
	if err != nil {
		return nil, err
	}

	m.ProjectSaves, err = meter.Int64Counter("cipherstudio.projects.saved",
		metric.WithDescription("Number of explicit project saves"))
	if err != nil {
		return nil, err
	}

	m.AutosaveFlush, err = meter.Int64Counter("cipherstudio.autosave.flushes",
		metric.WithDescription("Number of autosave flushes"))
	if err != nil {
		return nil, err
	}

	m.PreviewLatency, err = meter.Float64Histogram("cipherstudio.preview.duration_seconds",
		metric.WithDescription("Preview synthesis duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.SaveLatency, err = meter.Float64Histogram("cipherstudio.save.duration_seconds",
		metric.WithDescription("Project persistence duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
