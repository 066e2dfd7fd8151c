package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fissio-dev/fissio/engine"
)

// MetricsHandler records counters and histograms for node executions,
// failures, and run durations.
type MetricsHandler struct {
	nodeExecutions metric.Int64Counter
	nodeFailures   metric.Int64Counter
	nodeDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	nodeExec, err := meter.Int64Counter("fissio.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}
	nodeFail, err := meter.Int64Counter("fissio.node.failures",
		metric.WithDescription("Number of node failures"),
	)
	if err != nil {
		return nil, err
	}
	nodeDur, err := meter.Float64Histogram("fissio.node.duration",
		metric.WithDescription("Duration of node execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	runDur, err := meter.Float64Histogram("fissio.run.duration",
		metric.WithDescription("Duration of pipeline run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		nodeExecutions: nodeExec,
		nodeFailures:   nodeFail,
		nodeDuration:   nodeDur,
		runDuration:    runDur,
	}, nil
}

// Handle implements engine.EventHandler.
func (h *MetricsHandler) Handle(e engine.Event) {
	switch e.Kind {
	case engine.EventNodeFinished:
		h.handleNodeFinished(e)
	case engine.EventNodeFailed:
		h.handleNodeFailed(e)
	case engine.EventRunFinished:
		h.handleRunFinished(e)
	}
}

func (h *MetricsHandler) handleNodeFinished(e engine.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_type", e.NodeType),
		attribute.String("node_id", e.NodeID),
	)
	h.nodeExecutions.Add(ctx, 1, attrs)
	h.nodeDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

func (h *MetricsHandler) handleNodeFailed(e engine.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_type", e.NodeType),
		attribute.String("node_id", e.NodeID),
	)
	h.nodeFailures.Add(ctx, 1, attrs)
}

func (h *MetricsHandler) handleRunFinished(e engine.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("run_id", e.RunID))
	h.runDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}
