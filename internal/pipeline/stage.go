// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package pipeline executes scene generation strategies. A strategy is an
// ordered, immutable list of stages; the generator threads a scene state
// through them, feeding each stage the previous stage's output.
package pipeline

import (
	"context"

	"github.com/scenio-dev/scenio/internal/scene"
)

// Stage is one step of a generation strategy. Execute receives the current
// scene state and the user prompt and returns the next state. Stages must
// treat the input state as read-only and derive the next state from it;
// scene.State's With methods make that the cheap default.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *scene.State, prompt string) (*scene.State, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, state *scene.State, prompt string) (*scene.State, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Execute(ctx context.Context, state *scene.State, prompt string) (*scene.State, error) {
	return s.Fn(ctx, state, prompt)
}
