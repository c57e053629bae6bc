package schema

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ObjectID is the ObjectId scalar: 24 hex characters on the wire.
var ObjectID = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "ObjectId",
	Description: "A 12-byte document identifier, written as 24 hex characters.",
	Serialize:   serializeObjectID,
	ParseValue:  parseObjectID,
	ParseLiteral: func(v ast.Value) interface{} {
		if s, ok := v.(*ast.StringValue); ok {
			return parseObjectID(s.Value)
		}
		return nil
	},
})

func serializeObjectID(v interface{}) interface{} {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case *bson.ObjectID:
		if id == nil {
			return nil
		}
		return id.Hex()
	case string:
		if _, err := bson.ObjectIDFromHex(id); err == nil {
			return id
		}
	}
	return nil
}

// parseObjectID returns nil for anything that is not a valid hex id, which
// the executor reports as an invalid argument.
func parseObjectID(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	id, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return nil
	}
	return id
}
