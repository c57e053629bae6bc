package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/stevemurr/foogate/apperr"
	"github.com/stevemurr/foogate/document"
	"github.com/stevemurr/foogate/model"
)

func marshal(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	require.NoError(t, err)
	return bson.Raw(b)
}

func TestEncodeUsesDocumentNames(t *testing.T) {
	thingID := bson.NewObjectID()
	raw, err := document.Encode(model.FooInput{
		FooString: "A",
		Things:    []model.Thing{{ID: thingID, ThingInfo: "t1"}},
	})
	require.NoError(t, err)

	keys, err := raw.Elements()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "foo_string", keys[0].Key())
	assert.Equal(t, "things", keys[1].Key())

	thing := raw.Lookup("things", "0").Document()
	assert.Equal(t, thingID, thing.Lookup("_id").ObjectID())
	assert.Equal(t, "t1", thing.Lookup("thing_info").StringValue())
}

func TestEncodeNilThingsAsEmptyArray(t *testing.T) {
	raw, err := document.Encode(model.FooInput{FooString: "A"})
	require.NoError(t, err)
	v := raw.Lookup("things")
	require.Equal(t, bson.TypeArray, v.Type)
	vals, err := v.Array().Values()
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestEncodeRejectsNonDocuments(t *testing.T) {
	for _, v := range []any{"plain string", 42, []model.Thing{}, nil} {
		_, err := document.Encode(v)
		require.Error(t, err, "%T", v)
		assert.Equal(t, apperr.Encode, apperr.KindOf(err))
	}
}

func TestRoundTripFooInput(t *testing.T) {
	inputs := []model.FooInput{
		{FooString: "A", Things: []model.Thing{}},
		{FooString: "", Things: []model.Thing{{ID: bson.NewObjectID(), ThingInfo: ""}}},
		{FooString: "unicode ✓", Things: []model.Thing{
			{ID: bson.NewObjectID(), ThingInfo: "t1"},
			{ID: bson.NewObjectID(), ThingInfo: "t2"},
		}},
	}
	for _, in := range inputs {
		raw, err := document.Encode(in)
		require.NoError(t, err)
		out, err := document.Decode[model.FooInput](raw)
		require.NoError(t, err)
		assert.Equal(t, in.FooString, out.FooString)
		if len(in.Things) == 0 {
			assert.Empty(t, out.Things)
		} else {
			assert.Equal(t, in.Things, out.Things)
		}
	}
}

func TestDecodeFoo(t *testing.T) {
	id := bson.NewObjectID()
	thingID := bson.NewObjectID()
	raw := marshal(t, bson.D{
		{Key: "_id", Value: id},
		{Key: "foo_string", Value: "A"},
		{Key: "things", Value: bson.A{bson.D{{Key: "_id", Value: thingID}, {Key: "thing_info", Value: "t1"}}}},
		{Key: "extra", Value: true},
	})
	foo, err := document.Decode[model.Foo](raw)
	require.NoError(t, err)
	assert.Equal(t, model.Foo{
		ID:        id,
		FooString: "A",
		Things:    []model.Thing{{ID: thingID, ThingInfo: "t1"}},
	}, foo)
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	id := bson.NewObjectID()
	tests := []struct {
		name string
		doc  bson.D
		want string
	}{
		{
			name: "missing id",
			doc:  bson.D{{Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{}}},
			want: `missing required field "_id"`,
		},
		{
			name: "missing things",
			doc:  bson.D{{Key: "_id", Value: id}, {Key: "foo_string", Value: "A"}},
			want: `missing required field "things"`,
		},
		{
			name: "string of wrong type",
			doc:  bson.D{{Key: "_id", Value: id}, {Key: "foo_string", Value: int32(7)}, {Key: "things", Value: bson.A{}}},
			want: "$.foo_string",
		},
		{
			name: "id of wrong type",
			doc:  bson.D{{Key: "_id", Value: "not-an-oid"}, {Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{}}},
			want: "$._id",
		},
		{
			name: "things not an array",
			doc:  bson.D{{Key: "_id", Value: id}, {Key: "foo_string", Value: "A"}, {Key: "things", Value: "nope"}},
			want: "$.things",
		},
		{
			name: "thing missing info",
			doc: bson.D{{Key: "_id", Value: id}, {Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{
				bson.D{{Key: "_id", Value: bson.NewObjectID()}, {Key: "thing_info", Value: "ok"}},
				bson.D{{Key: "_id", Value: bson.NewObjectID()}},
			}}},
			want: `$.things[1]: missing required field "thing_info"`,
		},
		{
			name: "null things",
			doc:  bson.D{{Key: "_id", Value: id}, {Key: "foo_string", Value: "A"}, {Key: "things", Value: nil}},
			want: "$.things",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := document.Decode[model.Foo](marshal(t, tt.doc))
			require.Error(t, err)
			assert.Equal(t, apperr.Decode, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeCorruptBytes(t *testing.T) {
	_, err := document.Decode[model.Foo](bson.Raw{0x05, 0x00})
	require.Error(t, err)
	assert.Equal(t, apperr.Decode, apperr.KindOf(err))
}

func TestDecodeAllStopsAtFirstFailure(t *testing.T) {
	good := marshal(t, bson.D{{Key: "_id", Value: bson.NewObjectID()}, {Key: "foo_string", Value: "A"}, {Key: "things", Value: bson.A{}}})
	bad := marshal(t, bson.D{{Key: "_id", Value: bson.NewObjectID()}})

	foos, err := document.DecodeAll[model.Foo]([]bson.Raw{good, good})
	require.NoError(t, err)
	assert.Len(t, foos, 2)

	foos, err = document.DecodeAll[model.Foo]([]bson.Raw{good, bad, good})
	require.Error(t, err)
	assert.Nil(t, foos)
	assert.Contains(t, err.Error(), "[1]")

	foos, err = document.DecodeAll[model.Foo](nil)
	require.NoError(t, err)
	assert.NotNil(t, foos)
	assert.Empty(t, foos)
}

func TestObjectID(t *testing.T) {
	id := bson.NewObjectID()

	got, err := document.ObjectID(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = document.ObjectID(&id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	raw := marshal(t, bson.D{{Key: "_id", Value: id}})
	got, err = document.ObjectID(raw.Lookup("_id"))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, v := range []any{"abc", int32(1), (*bson.ObjectID)(nil), marshal(t, bson.D{{Key: "_id", Value: "x"}}).Lookup("_id")} {
		_, err := document.ObjectID(v)
		require.Error(t, err, "%T", v)
		assert.Equal(t, apperr.Decode, apperr.KindOf(err))
	}
}
