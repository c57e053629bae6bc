// Package resolver implements the operations behind the GraphQL fields. Each
// operation encodes its input, issues one logical store call and turns the
// outcome into a typed value or an *apperr.Error.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/stevemurr/foogate/apperr"
	"github.com/stevemurr/foogate/document"
	"github.com/stevemurr/foogate/model"
	"github.com/stevemurr/foogate/store"
)

const (
	opList        = "list"
	opInsertOne   = "insertOne"
	opInsertMany  = "insertMany"
	opDeleteOne   = "deleteOne"
	opAppendChild = "appendChild"
)

// Resolver is the per-process handle shared by every request. It holds no
// mutable state of its own and is safe for concurrent use.
type Resolver struct {
	foos store.Collection
	log  *slog.Logger
}

func New(foos store.Collection, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{foos: foos, log: log}
}

// Collection returns the underlying store handle.
func (r *Resolver) Collection() store.Collection { return r.foos }

// List returns every Foo in the collection, in store order.
func (r *Resolver) List(ctx context.Context) (foos []model.Foo, err error) {
	defer r.observe(ctx, opList, time.Now(), &err)

	docs, err := r.foos.Find(ctx)
	if err != nil {
		return nil, storeFailure(opList, err)
	}
	return document.DecodeAll[model.Foo](docs)
}

// InsertOne stores a new Foo and returns its generated identifier.
func (r *Resolver) InsertOne(ctx context.Context, in model.FooInput) (id model.ID, err error) {
	defer r.observe(ctx, opInsertOne, time.Now(), &err)

	doc, err := document.Encode(in)
	if err != nil {
		return id, err
	}
	res, err := r.foos.InsertOne(ctx, doc)
	if err != nil {
		return id, storeFailure(opInsertOne, err)
	}
	if res == nil || res.InsertedID == nil {
		return id, apperr.NewMissing(opInsertOne, "inserted id in store result")
	}
	return document.ObjectID(res.InsertedID)
}

// InsertMany stores every input in one batch. Nothing is sent unless all
// inputs encode. Identifiers are returned in input order.
func (r *Resolver) InsertMany(ctx context.Context, in []model.FooInput) (ids []model.ID, err error) {
	defer r.observe(ctx, opInsertMany, time.Now(), &err)

	docs := make([]bson.Raw, 0, len(in))
	for i, foo := range in {
		doc, err := document.Encode(foo)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				ae.Op = fmt.Sprintf("%s: input[%d]: %s", opInsertMany, i, ae.Op)
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return []model.ID{}, nil
	}

	res, err := r.foos.InsertMany(ctx, docs)
	if err != nil {
		return nil, storeFailure(opInsertMany, err)
	}
	if res == nil || len(res.InsertedIDs) != len(docs) {
		got := 0
		if res != nil {
			got = len(res.InsertedIDs)
		}
		return nil, apperr.NewMissing(opInsertMany, fmt.Sprintf("%d inserted ids in store result, got %d", len(docs), got))
	}
	ids = make([]model.ID, 0, len(docs))
	for _, v := range res.InsertedIDs {
		id, err := document.ObjectID(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteOne removes the Foo with the given identifier. Deleting an absent
// Foo reports false. So does a zero count from the delete itself, which
// happens when another request removed the document after the lookup.
func (r *Resolver) DeleteOne(ctx context.Context, id model.ID) (deleted bool, err error) {
	defer r.observe(ctx, opDeleteOne, time.Now(), &err)

	filter := bson.D{{Key: "_id", Value: id}}
	doc, err := r.foos.FindOne(ctx, filter)
	if err != nil {
		return false, storeFailure(opDeleteOne, err)
	}
	if doc == nil {
		return false, nil
	}
	res, err := r.foos.DeleteOne(ctx, filter)
	if err != nil {
		return false, storeFailure(opDeleteOne, err)
	}
	if res == nil {
		return false, apperr.NewMissing(opDeleteOne, "deleted count in store result")
	}
	if res.DeletedCount == 0 {
		r.log.DebugContext(ctx, "foo vanished between lookup and delete", "id", id.Hex())
	}
	return res.DeletedCount > 0, nil
}

// AppendChild pushes child onto the things of the Foo with the given
// identifier. A missing parent is not an error: the stats report zero
// matches.
func (r *Resolver) AppendChild(ctx context.Context, parent model.ID, child model.ThingInput) (stats model.UpdateStats, err error) {
	defer r.observe(ctx, opAppendChild, time.Now(), &err)

	doc, err := document.Encode(child)
	if err != nil {
		// The schema already type-checked child, so this is our bug, not the client's.
		r.log.ErrorContext(ctx, "validated thing input failed to encode", "error", err)
		return stats, err
	}
	res, err := r.foos.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: parent}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: doc}}}},
	)
	if err != nil {
		return stats, storeFailure(opAppendChild, err)
	}
	if res == nil {
		return stats, apperr.NewMissing(opAppendChild, "update result")
	}
	stats.MatchedCount = res.MatchedCount
	stats.ModifiedCount = res.ModifiedCount
	if res.UpsertedID != nil {
		id, err := document.ObjectID(res.UpsertedID)
		if err != nil {
			return model.UpdateStats{}, err
		}
		stats.ID = &id
	}
	return stats, nil
}

// storeFailure tags a store error as a write exception or a native store
// error.
func storeFailure(op string, err error) error {
	var we *store.WriteException
	if errors.As(err, &we) {
		return apperr.NewWrite(op, we)
	}
	return apperr.NewStore(op, err)
}

func (r *Resolver) observe(ctx context.Context, op string, start time.Time, errp *error) {
	result := "ok"
	if err := *errp; err != nil {
		result = apperr.KindOf(err).Code()
		r.log.WarnContext(ctx, "resolver failed", "op", op, "kind", apperr.KindOf(err).String(), "error", err)
	}
	callsTotal.WithLabelValues(op, result).Inc()
	callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
