package variables

// Resolver combines variable layers (collection, then environment, then
// command line overrides) into the ambient set a run sees.
type Resolver struct {
	layers []Set
}

// NewResolver returns a resolver over the given layers, lowest priority first.
func NewResolver(layers ...Set) *Resolver {
	copied := make([]Set, len(layers))
	for i, l := range layers {
		copied[i] = l.Clone()
	}
	return &Resolver{layers: copied}
}

// EffectiveVariables returns the merged ambient variables.
func (r *Resolver) EffectiveVariables() Set {
	if r == nil {
		return Set{}
	}
	return Set{}.Overlay(r.layers...)
}

// ReplaceTemplates substitutes placeholders in text using vars.
func (r *Resolver) ReplaceTemplates(text string, vars Set) string {
	return Apply(text, vars)
}
