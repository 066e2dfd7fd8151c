package engine

import "github.com/fissio-dev/fissio/core"

// ModelResolver picks a ModelConfig by ID, falling back to a default
// whenever a node names no model, an override is empty, or an ID doesn't
// match anything registered.
type ModelResolver struct {
	models       map[string]core.ModelConfig
	defaultModel core.ModelConfig
}

func NewModelResolver(models []core.ModelConfig, defaultModel core.ModelConfig) *ModelResolver {
	byID := make(map[string]core.ModelConfig, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &ModelResolver{models: byID, defaultModel: defaultModel}
}

// Resolve returns the ModelConfig for modelID, or the default when
// modelID is empty or unrecognized.
func (r *ModelResolver) Resolve(modelID string) core.ModelConfig {
	if modelID == "" {
		return r.defaultModel
	}
	if m, ok := r.models[modelID]; ok {
		return m
	}
	return r.defaultModel
}
