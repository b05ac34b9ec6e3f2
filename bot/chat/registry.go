package chat

// Registry is the ordered list of steps of one provider.
type Registry struct {
	provider string
	order    []StepID
	steps    map[StepID]Step
}

// NewRegistry builds a registry; steps are asked in the given order.
func NewRegistry(provider string, steps ...Step) *Registry {
	r := &Registry{
		provider: provider,
		order:    make([]StepID, 0, len(steps)),
		steps:    make(map[StepID]Step, len(steps)),
	}
	for _, s := range steps {
		r.order = append(r.order, s.ID())
		r.steps[s.ID()] = s
	}
	return r
}

func (r *Registry) Provider() string { return r.provider }

func (r *Registry) Len() int { return len(r.order) }

// At returns the step at position i.
func (r *Registry) At(i int) (Step, bool) {
	if i < 0 || i >= len(r.order) {
		return nil, false
	}
	step, ok := r.steps[r.order[i]]
	return step, ok
}

// GetStep returns a step by its ID.
func (r *Registry) GetStep(id StepID) (Step, bool) {
	step, ok := r.steps[id]
	return step, ok
}
