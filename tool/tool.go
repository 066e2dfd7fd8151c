// Package tool defines the tool contract the pipeline engine's agentic
// loop calls into, and a registry for looking tools up by name.
package tool

import (
	"context"

	"github.com/fissio-dev/fissio/core"
)

// Tool is the polymorphic contract the engine observes: a name,
// description, a JSON-Schema-shaped parameter spec, and an async
// execute function returning a string or an error. Implementations may
// do arbitrary I/O and must be safe for concurrent use — the engine may
// invoke several distinct tools from parallel pipeline branches at once,
// though calls within a single agentic-loop iteration are never
// parallelized.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, arguments string) (string, error)
}

// Schema returns the ToolSchema view of t — the only shape the engine
// itself observes from a tool beyond its name.
func Schema(t Tool) core.ToolSchema {
	return core.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// FuncTool adapts a plain function into a Tool, for tests and small
// built-ins that don't need their own type.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  map[string]any
	Fn              func(ctx context.Context, arguments string) (string, error)
}

func (f *FuncTool) Name() string                { return f.ToolName }
func (f *FuncTool) Description() string         { return f.ToolDescription }
func (f *FuncTool) Parameters() map[string]any  { return f.ToolParameters }
func (f *FuncTool) Execute(ctx context.Context, arguments string) (string, error) {
	return f.Fn(ctx, arguments)
}
