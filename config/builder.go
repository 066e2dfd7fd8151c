package config

// Builder assembles a PipelineConfig without hand-writing JSON. It does
// not validate the graph; the engine's traversal is the only check a
// pipeline ever receives.
type Builder struct {
	pipeline PipelineConfig
}

// NewBuilder starts a pipeline with the given id and name.
func NewBuilder(id, name string) *Builder {
	return &Builder{pipeline: PipelineConfig{ID: id, Name: name}}
}

func (b *Builder) Description(desc string) *Builder {
	b.pipeline.Description = desc
	return b
}

func (b *Builder) AddNode(n NodeConfig) *Builder {
	b.pipeline.Nodes = append(b.pipeline.Nodes, n)
	return b
}

func (b *Builder) AddEdge(from, to EdgeEndpoint, edgeType EdgeType) *Builder {
	b.pipeline.Edges = append(b.pipeline.Edges, EdgeConfig{From: from, To: to, Type: edgeType})
	return b
}

// Build returns the assembled config.
func (b *Builder) Build() PipelineConfig {
	return b.pipeline
}
