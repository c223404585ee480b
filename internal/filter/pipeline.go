package filter

import (
	"fmt"
)

// Pipeline is an ordered list of filters. Encode applies them first to
// last and Decode applies them last to first.
type Pipeline struct {
	filters []Filter
}

// NewPipeline creates a filter pipeline from persisted specs.
func NewPipeline(specs []Spec) (*Pipeline, error) {
	p := &Pipeline{
		filters: make([]Filter, 0, len(specs)),
	}

	for _, spec := range specs {
		f, err := New(spec)
		if err != nil {
			return nil, fmt.Errorf("creating filter %s: %w", Name(spec.ID), err)
		}
		p.filters = append(p.filters, f)
	}

	return p, nil
}

// Encode applies the pipeline to raw data.
func (p *Pipeline) Encode(input []byte) ([]byte, error) {
	data := input
	for _, f := range p.filters {
		var err error
		data, err = f.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s encode: %w", Name(f.ID()), err)
		}
	}
	return data, nil
}

// Decode reverses the pipeline on stored data.
func (p *Pipeline) Decode(input []byte) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		var err error
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s decode: %w", Name(p.filters[i].ID()), err)
		}
	}
	return data, nil
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.filters)
}
