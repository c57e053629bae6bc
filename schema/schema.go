// Package schema binds the resolvers to a GraphQL schema.
//
// Wire names are camelCase and come from the `json` tags of the model types.
// The document-side names are the document package's business and never
// appear here.
package schema

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/stevemurr/foogate/apperr"
	"github.com/stevemurr/foogate/model"
	"github.com/stevemurr/foogate/resolver"
)

// Request is one GraphQL request envelope.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type ctxKey struct{}

// NewContext returns ctx carrying r for the resolvers of one request.
func NewContext(ctx context.Context, r *resolver.Resolver) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the resolver stored by NewContext.
func FromContext(ctx context.Context) (*resolver.Resolver, error) {
	r, ok := ctx.Value(ctxKey{}).(*resolver.Resolver)
	if !ok || r == nil {
		return nil, apperr.NewMissing("schema", "resolver in request context")
	}
	return r, nil
}

// Execute runs req against s with r as the request context.
func Execute(ctx context.Context, s graphql.Schema, r *resolver.Resolver, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        NewContext(ctx, r),
	})
}

// New builds the schema.
func New() (graphql.Schema, error) {
	thingInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ThingInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(ObjectID)},
			"thingInfo": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	fooInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "FooInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"fooString": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"things":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(thingInput)))},
		},
	})

	thing := graphql.NewObject(graphql.ObjectConfig{
		Name: "Thing",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(ObjectID)},
			"thingInfo": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	fooPayload := graphql.NewObject(graphql.ObjectConfig{
		Name: "FooPayload",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(ObjectID)},
			"fooString": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"things": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(thing))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					foo, _ := p.Source.(model.Foo)
					if foo.Things == nil {
						return []model.Thing{}, nil
					}
					return foo.Things, nil
				},
			},
		},
	})
	updateStats := graphql.NewObject(graphql.ObjectConfig{
		Name: "UpdateStats",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: ObjectID,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, _ := p.Source.(model.UpdateStats)
					if s.ID == nil {
						return nil, nil
					}
					return *s.ID, nil
				},
			},
			"matchedCount":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"modifiedCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"fooPayloads": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(fooPayload))),
				Description: "Every Foo in the collection.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := FromContext(p.Context)
					if err != nil {
						return nil, err
					}
					return r.List(p.Context)
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addFoo": &graphql.Field{
				Type:        graphql.NewNonNull(ObjectID),
				Description: "Insert a new Foo document.",
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(fooInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := FromContext(p.Context)
					if err != nil {
						return nil, err
					}
					in, err := fooInputArg(p.Args["input"])
					if err != nil {
						return nil, err
					}
					return r.InsertOne(p.Context, in)
				},
			},
			"addFoos": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(ObjectID))),
				Description: "Insert a list of Foos into the database.",
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(fooInput)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := FromContext(p.Context)
					if err != nil {
						return nil, err
					}
					in, err := fooInputsArg(p.Args["input"])
					if err != nil {
						return nil, err
					}
					return r.InsertMany(p.Context, in)
				},
			},
			"deleteFoos": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Delete the Foo with the given id. Returns false if it did not exist.",
				Args: graphql.FieldConfigArgument{
					"fooId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(ObjectID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := FromContext(p.Context)
					if err != nil {
						return nil, err
					}
					id, err := idArg(p.Args["fooId"])
					if err != nil {
						return nil, err
					}
					return r.DeleteOne(p.Context, id)
				},
			},
			"addThing": &graphql.Field{
				Type:        graphql.NewNonNull(updateStats),
				Description: "Insert a new Thing document.",
				Args: graphql.FieldConfigArgument{
					"fooId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(ObjectID)},
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(thingInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := FromContext(p.Context)
					if err != nil {
						return nil, err
					}
					id, err := idArg(p.Args["fooId"])
					if err != nil {
						return nil, err
					}
					in, err := thingInputArg(p.Args["input"])
					if err != nil {
						return nil, err
					}
					return r.AppendChild(p.Context, id, in)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
