// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/scenio-dev/scenio/internal/scene"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Generator runs strategies. The zero value is not usable; construct with
// NewGenerator.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a generator. A nil logger defaults to slog.Default.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger}
}

// Generate runs the strategy's stages in order, threading the scene state
// through them. A nil initial state starts from an empty scene. The first
// stage error aborts the run and is returned with its code intact;
// intermediate states are discarded. Context cancellation is checked before
// every stage, so a long strategy stops at the next stage boundary.
func (g *Generator) Generate(ctx context.Context, strat *Strategy, prompt string, initial *scene.State) (*scene.State, error) {
	if strat == nil {
		return nil, scenioerr.New(scenioerr.CodePipelineStageInvalid, "strategy must not be nil")
	}

	state := initial
	if state == nil {
		state = scene.Empty()
	}

	for i, stage := range strat.Stages() {
		if err := ctx.Err(); err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeInternalFailure,
				"generation cancelled", scenioerr.FieldStage(stage.Name()))
		}

		start := time.Now()
		next, err := stage.Execute(ctx, state, prompt)
		g.logger.Debug("stage executed",
			"strategy", strat.Name(),
			"stage", stage.Name(),
			"position", i,
			"duration", time.Since(start),
			"err", err,
		)
		if err != nil {
			return nil, scenioerr.With(err, scenioerr.FieldStage(stage.Name()))
		}
		if next == nil {
			return nil, scenioerr.New(scenioerr.CodePipelineStageInvalid,
				"stage returned nil state", scenioerr.FieldStage(stage.Name()))
		}
		state = next
	}
	return state, nil
}
