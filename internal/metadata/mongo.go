// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata

import (
	"context"
	"errors"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scenio-dev/scenio/internal/filter"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("mongodb", newMongoAdapter)
	// Alias for configs written against the driver name.
	RegisterBackend("mongo", newMongoAdapter)
}

const (
	defaultMongoDatabase   = "scenio"
	defaultMongoCollection = "documents"
)

// mongoAdapter persists documents in a MongoDB collection. Filters are
// translated into native query documents so matching happens server-side.
type mongoAdapter struct {
	client *mongo.Client
	coll   *mongo.Collection
	closed atomic.Bool
}

func newMongoAdapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("mongodb", opts, "uri", "database", "collection"); err != nil {
		return nil, err
	}
	if err := requireOptions("mongodb", opts, "uri"); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts["uri"]))
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"connecting to mongodb", scenioerr.FieldBackend("mongodb"))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"pinging mongodb", scenioerr.FieldBackend("mongodb"))
	}

	database := opts["database"]
	if database == "" {
		database = defaultMongoDatabase
	}
	collection := opts["collection"]
	if collection == "" {
		collection = defaultMongoCollection
	}

	return &mongoAdapter{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (a *mongoAdapter) Name() string { return "mongodb" }

func (a *mongoAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeMetadataAdapterClosed,
			"metadata adapter is closed", scenioerr.FieldBackend("mongodb"))
	}
	return nil
}

func (a *mongoAdapter) Insert(ctx context.Context, doc map[string]any) (string, error) {
	if err := a.guard(); err != nil {
		return "", err
	}
	id, body, err := claimID(doc)
	if err != nil {
		return "", err
	}

	stored := bson.M{"_id": id}
	for k, v := range body {
		stored[k] = v
	}
	if _, err := a.coll.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", scenioerr.New(scenioerr.CodeMetadataDocumentConflict,
				"document already exists", scenioerr.FieldID(id))
		}
		return "", scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"inserting document", scenioerr.FieldBackend("mongodb"), scenioerr.FieldID(id))
	}
	return id, nil
}

func (a *mongoAdapter) Get(ctx context.Context, id string) (map[string]any, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	var raw bson.M
	err := a.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("mongodb", id)
	}
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"fetching document", scenioerr.FieldBackend("mongodb"), scenioerr.FieldID(id))
	}
	doc := fromBSON(raw)
	delete(doc, "_id")
	return doc, nil
}

func (a *mongoAdapter) Query(ctx context.Context, f filter.Filter, limit int) ([]Entry, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cursor, err := a.coll.Find(ctx, toMongoFilter(f), findOpts)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"querying documents", scenioerr.FieldBackend("mongodb"))
	}
	defer func() { _ = cursor.Close(ctx) }()

	var entries []Entry
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
				"decoding document", scenioerr.FieldBackend("mongodb"))
		}
		doc := fromBSON(raw)
		id, _ := doc["_id"].(string)
		delete(doc, "_id")
		entries = append(entries, Entry{ID: id, Doc: doc})
	}
	if err := cursor.Err(); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"iterating documents", scenioerr.FieldBackend("mongodb"))
	}
	return entries, nil
}

func (a *mongoAdapter) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := a.guard(); err != nil {
		return err
	}

	// Read-modify-write keeps the merge semantics identical across
	// backends rather than approximating them with $set/$unset.
	doc, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	merged := mergePatch(doc, patch)

	stored := bson.M{"_id": id}
	for k, v := range merged {
		stored[k] = v
	}
	res, err := a.coll.ReplaceOne(ctx, bson.M{"_id": id}, stored)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"updating document", scenioerr.FieldBackend("mongodb"), scenioerr.FieldID(id))
	}
	if res.MatchedCount == 0 {
		return notFound("mongodb", id)
	}
	return nil
}

func (a *mongoAdapter) Delete(ctx context.Context, id string) error {
	if err := a.guard(); err != nil {
		return err
	}

	res, err := a.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"deleting document", scenioerr.FieldBackend("mongodb"), scenioerr.FieldID(id))
	}
	if res.DeletedCount == 0 {
		return notFound("mongodb", id)
	}
	return nil
}

func (a *mongoAdapter) Count(ctx context.Context, f filter.Filter) (int64, error) {
	if err := a.guard(); err != nil {
		return 0, err
	}

	n, err := a.coll.CountDocuments(ctx, toMongoFilter(f))
	if err != nil {
		return 0, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"counting documents", scenioerr.FieldBackend("mongodb"))
	}
	return n, nil
}

func (a *mongoAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.client.Disconnect(context.Background())
}

// toMongoFilter translates a conjunction filter into a native query
// document, preserving the in-memory matching semantics: a document
// missing the filtered field never matches, including for "ne".
func toMongoFilter(f filter.Filter) bson.M {
	conds := f.Conditions()
	if len(conds) == 0 {
		return bson.M{}
	}

	clauses := make([]bson.M, 0, len(conds))
	for _, c := range conds {
		var pred bson.M
		switch c.Op {
		case filter.OpEq:
			pred = bson.M{"$eq": c.Value}
		case filter.OpNe:
			pred = bson.M{"$exists": true, "$ne": c.Value}
		case filter.OpGt:
			pred = bson.M{"$gt": c.Value}
		case filter.OpGte:
			pred = bson.M{"$gte": c.Value}
		case filter.OpLt:
			pred = bson.M{"$lt": c.Value}
		case filter.OpLte:
			pred = bson.M{"$lte": c.Value}
		case filter.OpIn:
			pred = bson.M{"$in": append(bson.A{}, filter.InValues(c.Value)...)}
		default:
			// Unknown operators match nothing.
			pred = bson.M{"$in": bson.A{}}
		}
		clauses = append(clauses, bson.M{c.Field: pred})
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}

// fromBSON converts decoded BSON values back into plain JSON-like maps so
// every backend returns the same shapes.
func fromBSON(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return fromBSON(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSONValue(item)
		}
		return out
	case primitive.DateTime:
		return t.Time()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
