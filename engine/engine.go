// Package engine walks a pipeline config's DAG from the synthetic
// "input" node to the synthetic "output" node, dispatching each
// intermediate node to an LLM, a router classifier, or a pass-through,
// and threading a shared context map between them.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fissio-dev/fissio/config"
	"github.com/fissio-dev/fissio/core"
	"github.com/fissio-dev/fissio/llm"
	"github.com/fissio-dev/fissio/tool"
)

// ClientResolver picks an llm.Client for a resolved ModelConfig.
// *llm.UnifiedClient satisfies this as-is; tests substitute a fake to
// exercise the traversal without a network call.
type ClientResolver interface {
	Resolve(model core.ModelConfig) llm.Client
}

// Engine is scoped to a single pipeline config but is safe to reuse
// across many Execute calls: all mutable per-run state lives in runState,
// not on the Engine itself.
type Engine struct {
	config        *config.PipelineConfig
	resolver      *ModelResolver
	nodeOverrides map[string]string
	toolRegistry  *tool.Registry
	unified       ClientResolver
	events        EventHandler
}

// New builds an engine with the default tool registry (every built-in
// tool this module ships, minus any that need an unset API key).
func New(cfg *config.PipelineConfig, models []core.ModelConfig, defaultModel core.ModelConfig, nodeOverrides map[string]string) *Engine {
	return NewWithTools(cfg, models, defaultModel, nodeOverrides, tool.NewRegistryWithDefaults())
}

// NewWithTools builds an engine against an explicit tool registry, for
// callers that want to restrict or extend what nodes can invoke.
func NewWithTools(cfg *config.PipelineConfig, models []core.ModelConfig, defaultModel core.ModelConfig, nodeOverrides map[string]string, registry *tool.Registry) *Engine {
	if nodeOverrides == nil {
		nodeOverrides = map[string]string{}
	}
	return &Engine{
		config:        cfg,
		resolver:      NewModelResolver(models, defaultModel),
		nodeOverrides: nodeOverrides,
		toolRegistry:  registry,
		unified:       llm.NewUnifiedClient(),
	}
}

// OnEvent registers a handler for every Event the engine emits during
// Execute. Replaces any previously registered handler.
func (e *Engine) OnEvent(h EventHandler) { e.events = h }

var runCounter atomic.Uint64

func nextRunID() string {
	return fmt.Sprintf("run-%d", runCounter.Add(1))
}

// runState holds everything that changes during one Execute call: the
// shared context map and the set of nodes already executed.
type runState struct {
	runID     string
	startedAt time.Time

	mu     sync.RWMutex
	values map[string]string

	executedMu sync.Mutex
	executed   map[string]bool

	tsMu       sync.Mutex
	nodeStarts map[string]time.Time
}

func newRunState(runID, userInput string) *runState {
	return &runState{
		runID:      runID,
		startedAt:  time.Now(),
		values:     map[string]string{config.ReservedInput: userInput},
		executed:   map[string]bool{},
		nodeStarts: map[string]time.Time{},
	}
}

func (rs *runState) startNode(id string) {
	rs.tsMu.Lock()
	rs.nodeStarts[id] = time.Now()
	rs.tsMu.Unlock()
}

func (rs *runState) nodeElapsed(id string) time.Duration {
	rs.tsMu.Lock()
	defer rs.tsMu.Unlock()
	if t, ok := rs.nodeStarts[id]; ok {
		return time.Since(t)
	}
	return 0
}

func (rs *runState) get(key string) (string, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	v, ok := rs.values[key]
	return v, ok
}

func (rs *runState) set(key, value string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.values[key] = value
}

func (rs *runState) isExecuted(id string) bool {
	rs.executedMu.Lock()
	defer rs.executedMu.Unlock()
	return rs.executed[id]
}

func (rs *runState) markExecuted(id string) {
	rs.executedMu.Lock()
	defer rs.executedMu.Unlock()
	rs.executed[id] = true
}

func (e *Engine) emit(rs *runState, kind EventKind, nodeID, nodeType string, elapsed time.Duration, err error) {
	if e.events == nil {
		return
	}
	e.events(Event{Kind: kind, RunID: rs.runID, NodeID: nodeID, NodeType: nodeType, Time: time.Now(), Elapsed: elapsed, Err: err})
}

// Execute runs the pipeline from the synthetic "input" node to
// completion and returns the content that reaches the synthetic
// "output" node. history is forwarded for API symmetry with the
// direct-chat path but, like the pipeline itself, no pipeline node
// consults prior turns — each node only ever sees its materialized
// input from the context map.
func (e *Engine) Execute(ctx context.Context, userInput string, history []core.Message) (string, error) {
	rs := newRunState(nextRunID(), userInput)
	e.emit(rs, EventRunStarted, "", "", 0, nil)

	for _, edge := range e.config.Edges {
		if !edge.From.Is(config.ReservedInput) {
			continue
		}
		if err := e.processEdge(ctx, rs, edge); err != nil {
			e.emit(rs, EventRunFinished, "", "", time.Since(rs.startedAt), err)
			return "", err
		}
	}

	result := e.finalOutput(rs)
	e.emit(rs, EventRunFinished, "", "", time.Since(rs.startedAt), nil)
	return result, nil
}

// finalOutput finds the first edge feeding the synthetic "output" node
// and returns the last of its source values that's present in the
// context map, walking the source list in reverse. Absent a matching
// edge, or with none of its sources ever written, the result is "".
func (e *Engine) finalOutput(rs *runState) string {
	for _, edge := range e.config.Edges {
		if !edge.To.Is(config.ReservedOutput) {
			continue
		}
		ids := edge.From.IDs()
		for i := len(ids) - 1; i >= 0; i-- {
			if v, ok := rs.get(ids[i]); ok {
				return v
			}
		}
		return ""
	}
	return ""
}

// processEdge is a no-op for the synthetic from-anything-to-"output"
// edge (its only effect is read by finalOutput, not by traversal), and
// otherwise dispatches to the parallel or sequential fan-out depending
// on the edge's declared type.
func (e *Engine) processEdge(ctx context.Context, rs *runState, edge config.EdgeConfig) error {
	if edge.To.Is(config.ReservedOutput) {
		return nil
	}
	targets := edge.To.IDs()
	if edge.Type == config.EdgeParallel {
		return e.executeParallel(ctx, rs, targets)
	}
	return e.executeSequential(ctx, rs, targets)
}

// executeSequential runs each target depth-first, in declared order:
// a node's outgoing edges are followed immediately after it finishes,
// before the next sibling in targetIDs even starts.
func (e *Engine) executeSequential(ctx context.Context, rs *runState, targetIDs []string) error {
	for _, id := range targetIDs {
		if id == config.ReservedOutput || rs.isExecuted(id) {
			continue
		}
		node := e.config.NodeByID(id)
		if node == nil {
			continue
		}

		input := e.getInputForNode(rs, id)
		outgoingTargets := e.getOutgoingTargets(id)
		model := e.resolveModel(node)

		rs.startNode(id)
		e.emit(rs, EventNodeStarted, id, string(node.Type), 0, nil)
		output, err := e.executeNode(ctx, node, model, input, outgoingTargets)
		if err != nil {
			e.emit(rs, EventNodeFailed, id, string(node.Type), rs.nodeElapsed(id), err)
			return fmt.Errorf("node %s: %w", id, err)
		}
		rs.set(id, output.Content)
		rs.markExecuted(id)
		e.emit(rs, EventNodeFinished, id, string(node.Type), rs.nodeElapsed(id), nil)

		if err := e.processOutgoingEdges(ctx, rs, id, output.NextNodes); err != nil {
			return err
		}
	}
	return nil
}

// executeParallel runs every non-executed target concurrently, snapshots
// each node's materialized input before any of them starts, and only
// writes results into the shared context (and follows outgoing edges)
// after every sibling has finished — so no sibling ever observes a
// partial fan-out.
func (e *Engine) executeParallel(ctx context.Context, rs *runState, targetIDs []string) error {
	type job struct {
		id       string
		node     *config.NodeConfig
		input    string
		outgoing []string
		model    core.ModelConfig
	}

	var jobs []job
	for _, id := range targetIDs {
		if rs.isExecuted(id) {
			continue
		}
		node := e.config.NodeByID(id)
		if node == nil {
			continue
		}
		jobs = append(jobs, job{
			id:       id,
			node:     node,
			input:    e.getInputForNode(rs, id),
			outgoing: e.getOutgoingTargets(id),
			model:    e.resolveModel(node),
		})
	}

	type jobResult struct {
		id     string
		output nodeOutput
	}
	results := make([]jobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			rs.startNode(j.id)
			e.emit(rs, EventNodeStarted, j.id, string(j.node.Type), 0, nil)
			out, err := e.executeNode(gctx, j.node, j.model, j.input, j.outgoing)
			if err != nil {
				e.emit(rs, EventNodeFailed, j.id, string(j.node.Type), rs.nodeElapsed(j.id), err)
				return fmt.Errorf("node %s: %w", j.id, err)
			}
			e.emit(rs, EventNodeFinished, j.id, string(j.node.Type), rs.nodeElapsed(j.id), nil)
			results[i] = jobResult{id: j.id, output: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	routerDecisions := make(map[string][]string, len(results))
	for _, r := range results {
		rs.set(r.id, r.output.Content)
		rs.markExecuted(r.id)
		if len(r.output.NextNodes) > 0 {
			routerDecisions[r.id] = r.output.NextNodes
		}
	}

	for _, id := range targetIDs {
		if err := e.processOutgoingEdges(ctx, rs, id, routerDecisions[id]); err != nil {
			return err
		}
	}
	return nil
}

// processOutgoingEdges follows every outgoing edge of nodeID, skipping
// an edge outright if any of its targets already ran, and — when
// routerTargets is non-empty — skipping any edge whose targets don't
// intersect the router's decision.
func (e *Engine) processOutgoingEdges(ctx context.Context, rs *runState, nodeID string, routerTargets []string) error {
	for _, edge := range e.getOutgoingEdges(nodeID) {
		edgeTargets := edge.To.IDs()

		alreadyRan := false
		for _, t := range edgeTargets {
			if rs.isExecuted(t) {
				alreadyRan = true
				break
			}
		}
		if alreadyRan {
			continue
		}

		if len(routerTargets) > 0 && !intersects(edgeTargets, routerTargets) {
			continue
		}

		if err := e.processEdge(ctx, rs, edge); err != nil {
			return err
		}
	}
	return nil
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (e *Engine) getOutgoingEdges(nodeID string) []config.EdgeConfig {
	var out []config.EdgeConfig
	for _, edge := range e.config.Edges {
		if edge.From.Contains(nodeID) {
			out = append(out, edge)
		}
	}
	return out
}

// getOutgoingTargets flattens every outgoing edge's target list,
// excluding the synthetic "output" sink — it is never a valid router
// classification target.
func (e *Engine) getOutgoingTargets(nodeID string) []string {
	var out []string
	for _, edge := range e.getOutgoingEdges(nodeID) {
		for _, id := range edge.To.IDs() {
			if id != config.ReservedOutput {
				out = append(out, id)
			}
		}
	}
	return out
}

// getInputForNode finds the first edge feeding nodeID and joins the
// present context values of its source list with a separator; when
// that edge (or any edge at all) yields nothing, it falls back to the
// original user input.
func (e *Engine) getInputForNode(rs *runState, nodeID string) string {
	for _, edge := range e.config.Edges {
		if !edge.To.Contains(nodeID) {
			continue
		}
		var parts []string
		for _, fromID := range edge.From.IDs() {
			if v, ok := rs.get(fromID); ok {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n---\n\n")
		}
		break
	}
	if v, ok := rs.get(config.ReservedInput); ok {
		return v
	}
	return ""
}

func (e *Engine) resolveModel(node *config.NodeConfig) core.ModelConfig {
	if override, ok := e.nodeOverrides[node.ID]; ok {
		return e.resolver.Resolve(override)
	}
	return e.resolver.Resolve(node.Model)
}
