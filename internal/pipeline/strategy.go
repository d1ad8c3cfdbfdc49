// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package pipeline

import (
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Strategy is an ordered, immutable list of stages under a name. Build one
// with NewBuilder; a built strategy can be shared across goroutines and
// reused for any number of generations.
type Strategy struct {
	name   string
	stages []Stage
}

// Name returns the strategy's name.
func (s *Strategy) Name() string { return s.name }

// Len returns the number of stages.
func (s *Strategy) Len() int { return len(s.stages) }

// Stages returns a copy of the stage list in execution order.
func (s *Strategy) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Builder assembles a Strategy. A builder is single-use: once Build has
// been called, further Add or Build calls fail.
type Builder struct {
	name   string
	stages []Stage
	err    error
	built  bool
}

// NewBuilder creates a strategy builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithName sets the strategy name.
func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

// Add appends a stage to the execution order.
func (b *Builder) Add(stage Stage) *Builder {
	if b.built {
		b.err = scenioerr.New(scenioerr.CodePipelineStrategyFrozen,
			"strategy already built, cannot add stages")
		return b
	}
	if stage == nil {
		b.err = scenioerr.New(scenioerr.CodePipelineStageInvalid, "stage must not be nil")
		return b
	}
	if stage.Name() == "" {
		b.err = scenioerr.New(scenioerr.CodePipelineStageInvalid, "stage must have a name")
		return b
	}
	b.stages = append(b.stages, stage)
	return b
}

// Build finalizes the strategy. The builder is frozen afterwards.
func (b *Builder) Build() (*Strategy, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, scenioerr.New(scenioerr.CodePipelineStrategyFrozen, "strategy already built")
	}
	if len(b.stages) == 0 {
		return nil, scenioerr.New(scenioerr.CodePipelineStageInvalid,
			"strategy needs at least one stage")
	}
	b.built = true

	name := b.name
	if name == "" {
		name = "unnamed"
	}
	stages := make([]Stage, len(b.stages))
	copy(stages, b.stages)
	return &Strategy{name: name, stages: stages}, nil
}
