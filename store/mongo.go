package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoCollection is a Collection backed by a MongoDB server. Cancellation
// and timeouts are left to the driver; timeout, when positive, becomes the
// client-side operation timeout.
type MongoCollection struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoCollection(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoCollection, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetTimeout(timeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &MongoCollection{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (c *MongoCollection) Find(ctx context.Context) ([]bson.Raw, error) {
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []bson.Raw
	for cur.Next(ctx) {
		out = append(out, clone(cur.Current))
	}
	return out, cur.Err()
}

func (c *MongoCollection) FindOne(ctx context.Context, filter bson.D) (bson.Raw, error) {
	raw, err := c.coll.FindOne(ctx, filter).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return clone(raw), nil
}

func (c *MongoCollection) InsertOne(ctx context.Context, doc bson.Raw) (*InsertOneResult, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, translate(err)
	}
	return &InsertOneResult{InsertedID: res.InsertedID}, nil
}

func (c *MongoCollection) InsertMany(ctx context.Context, docs []bson.Raw) (*InsertManyResult, error) {
	res, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, translate(err)
	}
	return &InsertManyResult{InsertedIDs: res.InsertedIDs}, nil
}

func (c *MongoCollection) DeleteOne(ctx context.Context, filter bson.D) (*DeleteResult, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return &DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *MongoCollection) UpdateOne(ctx context.Context, filter, update bson.D) (*UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, translate(err)
	}
	return &UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (c *MongoCollection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *MongoCollection) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// translate turns the driver's write exceptions into *WriteException and
// passes every other error through.
func translate(err error) error {
	var we mongo.WriteException
	if errors.As(err, &we) {
		out := &WriteException{}
		for _, e := range we.WriteErrors {
			out.WriteErrors = append(out.WriteErrors, WriteError{Index: e.Index, Code: e.Code, Message: e.Message})
		}
		if we.WriteConcernError != nil {
			out.ConcernError = we.WriteConcernError.Message
		}
		return out
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		out := &WriteException{}
		for _, e := range bwe.WriteErrors {
			out.WriteErrors = append(out.WriteErrors, WriteError{Index: e.Index, Code: e.Code, Message: e.Message})
		}
		if bwe.WriteConcernError != nil {
			out.ConcernError = bwe.WriteConcernError.Message
		}
		return out
	}
	return err
}
