// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/scenio-dev/scenio/internal/filter"
)

func TestToMongoFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter filter.Filter
		want   bson.M
	}{
		{
			name:   "empty matches everything",
			filter: filter.Filter{},
			want:   bson.M{},
		},
		{
			name:   "single equality",
			filter: filter.Eq("kind", "chair"),
			want:   bson.M{"kind": bson.M{"$eq": "chair"}},
		},
		{
			name:   "ne requires the field to exist",
			filter: filter.Where("height", filter.OpNe, 0.9),
			want:   bson.M{"height": bson.M{"$exists": true, "$ne": 0.9}},
		},
		{
			name:   "in",
			filter: filter.Where("kind", filter.OpIn, []any{"chair", "table"}),
			want:   bson.M{"kind": bson.M{"$in": bson.A{"chair", "table"}}},
		},
		{
			name:   "in widens typed slices",
			filter: filter.Where("kind", filter.OpIn, []string{"chair", "table"}),
			want:   bson.M{"kind": bson.M{"$in": bson.A{"chair", "table"}}},
		},
		{
			name:   "in treats a scalar as one candidate",
			filter: filter.Where("kind", filter.OpIn, "lamp"),
			want:   bson.M{"kind": bson.M{"$in": bson.A{"lamp"}}},
		},
		{
			name:   "empty in matches nothing",
			filter: filter.Where("kind", filter.OpIn, []any{}),
			want:   bson.M{"kind": bson.M{"$in": bson.A{}}},
		},
		{
			name:   "conjunction",
			filter: filter.Eq("kind", "chair").And("height", filter.OpGte, 1.0),
			want: bson.M{"$and": []bson.M{
				{"kind": bson.M{"$eq": "chair"}},
				{"height": bson.M{"$gte": 1.0}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toMongoFilter(tt.filter))
		})
	}
}

func TestFromBSONNormalizesNestedTypes(t *testing.T) {
	got := fromBSON(bson.M{
		"kind": "chair",
		"placement": bson.D{
			{Key: "room", Value: "studio"},
			{Key: "x", Value: int32(3)},
		},
		"tags":  bson.A{"seating", int64(7)},
		"count": int64(2),
	})

	assert.Equal(t, map[string]any{
		"kind": "chair",
		"placement": map[string]any{
			"room": "studio",
			"x":    float64(3),
		},
		"tags":  []any{"seating", float64(7)},
		"count": float64(2),
	}, got)
}
