// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package pipeline_test

import (
	"context"
	"testing"

	"github.com/scenio-dev/scenio/internal/pipeline"
	"github.com/scenio-dev/scenio/internal/scene"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(name string, fn func(ctx context.Context, state *scene.State, prompt string) (*scene.State, error)) pipeline.Stage {
	return pipeline.StageFunc{StageName: name, Fn: fn}
}

func arithmeticStrategy(t *testing.T) *pipeline.Strategy {
	t.Helper()

	strat, err := pipeline.NewBuilder().
		WithName("arithmetic").
		Add(stage("seed", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			return state.With("x", 1), nil
		})).
		Add(stage("increment", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			x, _ := state.Get("x")
			return state.With("y", x.(int)+1), nil
		})).
		Add(stage("double", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			y, _ := state.Get("y")
			return state.With("z", y.(int)*2), nil
		})).
		Build()
	require.NoError(t, err)
	return strat
}

func TestGenerateThreadsStateThroughStages(t *testing.T) {
	gen := pipeline.NewGenerator(nil)

	final, err := gen.Generate(context.Background(), arithmeticStrategy(t), "a test scene", nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": 1, "y": 2, "z": 4}, final.ToMap())
}

func TestGenerateIsDeterministic(t *testing.T) {
	gen := pipeline.NewGenerator(nil)
	strat := arithmeticStrategy(t)

	first, err := gen.Generate(context.Background(), strat, "p", nil)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), strat, "p", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ToMap(), second.ToMap())
}

func TestGenerateLeavesInitialStateUntouched(t *testing.T) {
	gen := pipeline.NewGenerator(nil)
	initial := scene.FromMap(map[string]any{"room": "studio"})

	final, err := gen.Generate(context.Background(), arithmeticStrategy(t), "p", initial)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"room": "studio"}, initial.ToMap())
	room, ok := final.Get("room")
	require.True(t, ok)
	assert.Equal(t, "studio", room)
}

func TestGenerateAbortsOnStageError(t *testing.T) {
	gen := pipeline.NewGenerator(nil)

	var thirdRan bool
	strat, err := pipeline.NewBuilder().
		WithName("failing").
		Add(stage("first", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			return state.With("x", 1), nil
		})).
		Add(stage("broken", func(_ context.Context, _ *scene.State, _ string) (*scene.State, error) {
			return nil, scenioerr.New(scenioerr.CodeVectorQueryInvalid, "no candidates")
		})).
		Add(stage("third", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			thirdRan = true
			return state, nil
		})).
		Build()
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), strat, "p", nil)
	require.Error(t, err)
	assert.False(t, thirdRan, "stages after a failure must not run")
	assert.Equal(t, scenioerr.CodeVectorQueryInvalid, scenioerr.CodeOf(err), "stage error code must survive")
	assert.Equal(t, "broken", scenioerr.FieldsOf(err)["stage"])
}

func TestGenerateRejectsNilStageResult(t *testing.T) {
	gen := pipeline.NewGenerator(nil)

	strat, err := pipeline.NewBuilder().
		Add(stage("nil-state", func(_ context.Context, _ *scene.State, _ string) (*scene.State, error) {
			return nil, nil
		})).
		Build()
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), strat, "p", nil)
	require.Error(t, err)
	assert.Equal(t, scenioerr.CodePipelineStageInvalid, scenioerr.CodeOf(err))
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	gen := pipeline.NewGenerator(nil)

	var ran int
	strat, err := pipeline.NewBuilder().
		Add(stage("only", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			ran++
			return state, nil
		})).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gen.Generate(ctx, strat, "p", nil)
	require.Error(t, err)
	assert.Zero(t, ran, "no stage may run after cancellation")
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := pipeline.NewBuilder().
		Add(stage("only", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			return state, nil
		}))

	strat, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1, strat.Len())

	_, err = b.Build()
	require.Error(t, err)

	_, err = b.Add(stage("late", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
		return state, nil
	})).Build()
	require.Error(t, err)
}

func TestBuilderRejectsInvalidStages(t *testing.T) {
	_, err := pipeline.NewBuilder().Build()
	require.Error(t, err, "empty strategy must not build")

	_, err = pipeline.NewBuilder().Add(nil).Build()
	require.Error(t, err)

	_, err = pipeline.NewBuilder().
		Add(stage("", func(_ context.Context, state *scene.State, _ string) (*scene.State, error) {
			return state, nil
		})).
		Build()
	require.Error(t, err)
}
