package telemetry_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fissio-dev/fissio/engine"
	"github.com/fissio-dev/fissio/telemetry"
)

func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetricsHandler_NodeFinishedRecordsExecutionAndDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := telemetry.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(engine.Event{Kind: engine.EventNodeFinished, RunID: "run-1", NodeID: "a", NodeType: "llm", Elapsed: 10 * time.Millisecond})

	rm := collectMetrics(t, reader)
	if m := findMetric(rm, "fissio.node.executions"); m == nil {
		t.Error("expected fissio.node.executions to be recorded")
	}
	if m := findMetric(rm, "fissio.node.duration"); m == nil {
		t.Error("expected fissio.node.duration to be recorded")
	}
}

func TestMetricsHandler_NodeFailedIncrementsFailureCounter(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := telemetry.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(engine.Event{Kind: engine.EventNodeFailed, RunID: "run-1", NodeID: "a", NodeType: "llm"})

	rm := collectMetrics(t, reader)
	if m := findMetric(rm, "fissio.node.failures"); m == nil {
		t.Error("expected fissio.node.failures to be recorded")
	}
}

func TestMetricsHandler_RunFinishedRecordsDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := telemetry.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(engine.Event{Kind: engine.EventRunFinished, RunID: "run-1", Elapsed: 250 * time.Millisecond})

	rm := collectMetrics(t, reader)
	if m := findMetric(rm, "fissio.run.duration"); m == nil {
		t.Error("expected fissio.run.duration to be recorded")
	}
}
