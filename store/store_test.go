package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/stevemurr/foogate/store"
)

func mustDoc(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	require.NoError(t, err)
	return bson.Raw(b)
}

func things(t *testing.T, raw bson.Raw) []bson.RawValue {
	t.Helper()
	vals, err := raw.Lookup("things").Array().Values()
	require.NoError(t, err)
	return vals
}

// runCollectionTests runs a common test suite against any Collection.
func runCollectionTests(t *testing.T, c store.Collection) {
	t.Helper()
	ctx := context.Background()

	t.Run("Find empty", func(t *testing.T) {
		docs, err := c.Find(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("operator filter rejected on empty collection", func(t *testing.T) {
		where := bson.D{{Key: "$where", Value: "1"}}
		_, err := c.FindOne(ctx, where)
		assert.ErrorIs(t, err, store.ErrUnsupported)
		_, err = c.DeleteOne(ctx, where)
		assert.ErrorIs(t, err, store.ErrUnsupported)
		_, err = c.UpdateOne(ctx, where, bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: int32(1)}}}})
		assert.ErrorIs(t, err, store.ErrUnsupported)
	})

	var firstID bson.ObjectID
	t.Run("InsertOne generates id", func(t *testing.T) {
		res, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{}}}))
		require.NoError(t, err)
		id, ok := res.InsertedID.(bson.ObjectID)
		require.True(t, ok, "expected ObjectID, got %T", res.InsertedID)
		assert.False(t, id.IsZero())
		firstID = id
	})

	t.Run("FindOne by id", func(t *testing.T) {
		got, err := c.FindOne(ctx, bson.D{{Key: "_id", Value: firstID}})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A", got.Lookup("foo_string").StringValue())
		assert.Equal(t, firstID, got.Lookup("_id").ObjectID())
	})

	t.Run("FindOne by field", func(t *testing.T) {
		got, err := c.FindOne(ctx, bson.D{{Key: "foo_string", Value: "A"}})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, firstID, got.Lookup("_id").ObjectID())
	})

	t.Run("FindOne missing", func(t *testing.T) {
		got, err := c.FindOne(ctx, bson.D{{Key: "_id", Value: bson.NewObjectID()}})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InsertOne duplicate id is a write exception", func(t *testing.T) {
		_, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "_id", Value: firstID}, {Key: "foo_string", Value: "dup"}}))
		var we *store.WriteException
		require.ErrorAs(t, err, &we)
		assert.True(t, we.HasCode(store.CodeDuplicateKey))
	})

	var batchIDs []bson.ObjectID
	t.Run("InsertMany keeps input order", func(t *testing.T) {
		preset := bson.NewObjectID()
		res, err := c.InsertMany(ctx, []bson.Raw{
			mustDoc(t, bson.D{{Key: "foo_string", Value: "B"}, {Key: "things", Value: bson.A{}}}),
			mustDoc(t, bson.D{{Key: "_id", Value: preset}, {Key: "foo_string", Value: "C"}, {Key: "things", Value: bson.A{}}}),
		})
		require.NoError(t, err)
		require.Len(t, res.InsertedIDs, 2)
		assert.Equal(t, preset, res.InsertedIDs[1])
		for _, v := range res.InsertedIDs {
			batchIDs = append(batchIDs, v.(bson.ObjectID))
		}

		docs, err := c.Find(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "A", docs[0].Lookup("foo_string").StringValue())
		assert.Equal(t, "B", docs[1].Lookup("foo_string").StringValue())
		assert.Equal(t, "C", docs[2].Lookup("foo_string").StringValue())
	})

	t.Run("InsertMany duplicate rejects the whole batch", func(t *testing.T) {
		_, err := c.InsertMany(ctx, []bson.Raw{
			mustDoc(t, bson.D{{Key: "foo_string", Value: "D"}}),
			mustDoc(t, bson.D{{Key: "_id", Value: firstID}, {Key: "foo_string", Value: "E"}}),
		})
		var we *store.WriteException
		require.ErrorAs(t, err, &we)
		require.Len(t, we.WriteErrors, 1)
		assert.Equal(t, 1, we.WriteErrors[0].Index)

		docs, err := c.Find(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})

	t.Run("UpdateOne pushes in order", func(t *testing.T) {
		filter := bson.D{{Key: "_id", Value: firstID}}
		for _, info := range []string{"t1", "t2"} {
			update := bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: mustDoc(t, bson.D{{Key: "thing_info", Value: info}})}}}}
			res, err := c.UpdateOne(ctx, filter, update)
			require.NoError(t, err)
			assert.Equal(t, int64(1), res.MatchedCount)
			assert.Equal(t, int64(1), res.ModifiedCount)
			assert.Nil(t, res.UpsertedID)
		}
		got, err := c.FindOne(ctx, filter)
		require.NoError(t, err)
		ts := things(t, got)
		require.Len(t, ts, 2)
		assert.Equal(t, "t1", ts[0].Document().Lookup("thing_info").StringValue())
		assert.Equal(t, "t2", ts[1].Document().Lookup("thing_info").StringValue())
	})

	t.Run("UpdateOne creates a missing array", func(t *testing.T) {
		res, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "foo_string", Value: "no things"}}))
		require.NoError(t, err)
		filter := bson.D{{Key: "_id", Value: res.InsertedID}}
		_, err = c.UpdateOne(ctx, filter, bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: "x"}}}})
		require.NoError(t, err)
		got, err := c.FindOne(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, things(t, got), 1)
		_, err = c.DeleteOne(ctx, filter)
		require.NoError(t, err)
	})

	t.Run("UpdateOne push onto non-array is a write exception", func(t *testing.T) {
		update := bson.D{{Key: "$push", Value: bson.D{{Key: "foo_string", Value: "x"}}}}
		_, err := c.UpdateOne(ctx, bson.D{{Key: "_id", Value: firstID}}, update)
		var we *store.WriteException
		require.ErrorAs(t, err, &we)
		assert.True(t, we.HasCode(store.CodeBadValue))
	})

	t.Run("UpdateOne no match", func(t *testing.T) {
		update := bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: "x"}}}}
		res, err := c.UpdateOne(ctx, bson.D{{Key: "_id", Value: bson.NewObjectID()}}, update)
		require.NoError(t, err)
		assert.Zero(t, res.MatchedCount)
		assert.Zero(t, res.ModifiedCount)
	})

	t.Run("DeleteOne existing", func(t *testing.T) {
		res, err := c.DeleteOne(ctx, bson.D{{Key: "_id", Value: batchIDs[0]}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.DeletedCount)
		got, err := c.FindOne(ctx, bson.D{{Key: "_id", Value: batchIDs[0]}})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteOne missing", func(t *testing.T) {
		res, err := c.DeleteOne(ctx, bson.D{{Key: "_id", Value: batchIDs[0]}})
		require.NoError(t, err)
		assert.Zero(t, res.DeletedCount)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(ctx))
	})
}

func TestMemoryCollection(t *testing.T) {
	runCollectionTests(t, store.NewMemoryCollection("foos"))
}

func TestSqliteCollection(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewSqliteCollection(filepath.Join(dir, "test.db"), "foos")
	require.NoError(t, err)
	defer s.Close(context.Background())
	runCollectionTests(t, s)
}

func TestMongoCollection(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	name := "foos_" + bson.NewObjectID().Hex()
	c, err := store.NewMongoCollection(ctx, uri, "foogate_test", name, 0)
	require.NoError(t, err)
	defer c.Close(ctx)
	// Mongo applies ordered batches up to the failing document, so the
	// all-or-nothing subtest does not apply; run the single-document checks.
	res, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{}}}))
	require.NoError(t, err)
	_, err = c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "_id", Value: res.InsertedID}}))
	var we *store.WriteException
	require.ErrorAs(t, err, &we)
	assert.True(t, we.HasCode(store.CodeDuplicateKey))
	del, err := c.DeleteOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), del.DeletedCount)
}

func TestSqliteCollectionsShareFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := store.NewSqliteCollection(path, "a")
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := store.NewSqliteCollection(path, "b")
	require.NoError(t, err)
	defer b.Close(ctx)

	_, err = a.InsertOne(ctx, mustDoc(t, bson.D{{Key: "n", Value: 1}}))
	require.NoError(t, err)
	docs, err := b.Find(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSqlitePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")
	s1, err := store.NewSqliteCollection(path, "foos")
	require.NoError(t, err)
	res, err := s1.InsertOne(ctx, mustDoc(t, bson.D{{Key: "foo_string", Value: "kept"}}))
	require.NoError(t, err)
	require.NoError(t, s1.Close(ctx))

	s2, err := store.NewSqliteCollection(path, "foos")
	require.NoError(t, err)
	defer s2.Close(ctx)
	got, err := s2.FindOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kept", got.Lookup("foo_string").StringValue())
}

func TestUnsupportedOperators(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("foos")
	_, err := c.FindOne(ctx, bson.D{{Key: "$where", Value: "1"}})
	assert.True(t, errors.Is(err, store.ErrUnsupported))

	res, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "n", Value: 1}}))
	require.NoError(t, err)
	_, err = c.UpdateOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}}, bson.D{{Key: "$set", Value: bson.D{{Key: "n", Value: 2}}}})
	assert.True(t, errors.Is(err, store.ErrUnsupported))
}

func TestMemoryConcurrentPush(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("foos")
	res, err := c.InsertOne(ctx, mustDoc(t, bson.D{{Key: "things", Value: bson.A{}}}))
	require.NoError(t, err)
	filter := bson.D{{Key: "_id", Value: res.InsertedID}}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.UpdateOne(ctx, filter, bson.D{{Key: "$push", Value: bson.D{{Key: "things", Value: int32(i)}}}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	got, err := c.FindOne(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, things(t, got), 20)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := store.New(context.Background(), store.Options{Backend: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestNewMemoryBackend(t *testing.T) {
	c, err := store.New(context.Background(), store.Options{Backend: "memory", Collection: "foos"})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryCollection{}, c)
}
