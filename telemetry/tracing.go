// Package telemetry translates engine.Events into OpenTelemetry spans
// and metrics.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fissio-dev/fissio/engine"
)

// TracingHandler turns a run's events into a root span plus one child
// span per node, keyed by run ID so a handler can be shared across
// concurrent Execute calls.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpans  map[string]trace.Span
	runCtxs   map[string]context.Context
	nodeSpans map[string]trace.Span
}

func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		nodeSpans: make(map[string]trace.Span),
	}
}

// Handle implements engine.EventHandler.
func (h *TracingHandler) Handle(e engine.Event) {
	switch e.Kind {
	case engine.EventRunStarted:
		h.handleRunStarted(e)
	case engine.EventNodeStarted:
		h.handleNodeStarted(e)
	case engine.EventNodeFinished:
		h.handleNodeFinished(e)
	case engine.EventNodeFailed:
		h.handleNodeFailed(e)
	case engine.EventRunFinished:
		h.handleRunFinished(e)
	}
}

func (h *TracingHandler) handleRunStarted(e engine.Event) {
	ctx, span := h.tracer.Start(context.Background(), "run:"+e.RunID,
		trace.WithAttributes(attribute.String("fissio.run_id", e.RunID)),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

func (h *TracingHandler) handleNodeStarted(e engine.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()
	if !ok {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "node:"+e.NodeID,
		trace.WithAttributes(
			attribute.String("fissio.run_id", e.RunID),
			attribute.String("fissio.node_id", e.NodeID),
			attribute.String("fissio.node_type", e.NodeType),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + e.NodeID
	h.mu.Lock()
	h.nodeSpans[key] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleNodeFinished(e engine.Event) {
	span, ok := h.takeNodeSpan(e)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("fissio.duration", e.Elapsed.String()))
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) handleNodeFailed(e engine.Event) {
	span, ok := h.takeNodeSpan(e)
	if !ok {
		return
	}
	errMsg := "unknown error"
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	span.SetStatus(codes.Error, errMsg)
	span.RecordError(e.Err, trace.WithTimestamp(e.Time))
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) takeNodeSpan(e engine.Event) (trace.Span, bool) {
	key := e.RunID + ":" + e.NodeID
	h.mu.Lock()
	defer h.mu.Unlock()
	span, ok := h.nodeSpans[key]
	if ok {
		delete(h.nodeSpans, key)
	}
	return span, ok
}

func (h *TracingHandler) handleRunFinished(e engine.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("fissio.duration", e.Elapsed.String()))
	if e.Err != nil {
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}
