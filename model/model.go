// Package model defines the Foo and Thing types shared by the codec, the
// resolvers and the GraphQL schema.
//
// Struct tags carry two naming conventions. The `bson` tag is the document
// side (snake_case, identifier under "_id") and belongs to the document
// package. The `json` tag is the wire side (camelCase) and belongs to the
// schema package.
package model

import "go.mongodb.org/mongo-driver/v2/bson"

// ID is the store-assigned identifier of a Foo, and the client-assigned
// identifier of a Thing.
type ID = bson.ObjectID

// Thing is embedded in exactly one Foo.
type Thing struct {
	ID        ID     `bson:"_id" json:"id"`
	ThingInfo string `bson:"thing_info" json:"thingInfo"`
}

// ThingInput is the client-supplied shape of a Thing. It has the same fields
// as Thing since the client assigns the identifier.
type ThingInput = Thing

// FooInput is the creation shape of a Foo. The identifier is absent and
// assigned by the store on insert.
type FooInput struct {
	FooString string  `bson:"foo_string" json:"fooString"`
	Things    []Thing `bson:"things" json:"things"`
}

// Foo is a stored aggregate as returned to clients.
type Foo struct {
	ID        ID      `bson:"_id" json:"id"`
	FooString string  `bson:"foo_string" json:"fooString"`
	Things    []Thing `bson:"things" json:"things"`
}

// Input strips the identifier.
func (f Foo) Input() FooInput {
	return FooInput{FooString: f.FooString, Things: f.Things}
}

// UpdateStats reports the effect of a mutating operation. ID is set only when
// the update created a new document.
type UpdateStats struct {
	ID            *ID   `json:"id"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}
