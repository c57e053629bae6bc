// Package client is a typed client for the gateway's GraphQL endpoint.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/stevemurr/foogate/model"
	"github.com/stevemurr/foogate/schema"
)

const (
	QueryFooPayloads = `query { fooPayloads { id fooString things { id thingInfo } } }`
	MutationAddFoo   = `mutation AddFoo($input: FooInput!) { addFoo(input: $input) }`
	MutationAddFoos  = `mutation AddFoos($input: [FooInput!]!) { addFoos(input: $input) }`
	MutationDelete   = `mutation DeleteFoos($fooId: ObjectId!) { deleteFoos(fooId: $fooId) }`
	MutationAddThing = `mutation AddThing($fooId: ObjectId!, $input: ThingInput!) {
  addThing(fooId: $fooId, input: $input) { id matchedCount modifiedCount }
}`
)

// Response is the decoded response envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []FieldError    `json:"errors,omitempty"`
}

type FieldError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Error is returned when the response carries field errors.
type Error struct {
	Status int
	Errors []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return fmt.Sprintf("graphql: status %d: %s", e.Status, strings.Join(msgs, "; "))
}

type Client struct {
	endpoint string
	http     *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client posting to endpoint, e.g. http://127.0.0.1:8000/graphql.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{endpoint: endpoint, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do posts req and returns the envelope with the HTTP status. Field errors
// are left in the envelope.
func (c *Client) Do(ctx context.Context, req schema.Request) (*Response, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return &out, resp.StatusCode, nil
}

// call runs one operation and decodes data into dst, failing on any field
// error.
func (c *Client) call(ctx context.Context, query string, vars map[string]any, dst any) error {
	// Round-trip the variables so model values carry their json names.
	if vars != nil {
		b, err := json.Marshal(vars)
		if err != nil {
			return err
		}
		vars = nil
		if err := json.Unmarshal(b, &vars); err != nil {
			return err
		}
	}
	resp, status, err := c.Do(ctx, schema.Request{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &Error{Status: status, Errors: resp.Errors}
	}
	return json.Unmarshal(resp.Data, dst)
}

func (c *Client) FooPayloads(ctx context.Context) ([]model.Foo, error) {
	var data struct {
		FooPayloads []model.Foo `json:"fooPayloads"`
	}
	if err := c.call(ctx, QueryFooPayloads, nil, &data); err != nil {
		return nil, err
	}
	return data.FooPayloads, nil
}

func (c *Client) AddFoo(ctx context.Context, in model.FooInput) (model.ID, error) {
	var data struct {
		AddFoo model.ID `json:"addFoo"`
	}
	err := c.call(ctx, MutationAddFoo, map[string]any{"input": withThings(in)}, &data)
	return data.AddFoo, err
}

func (c *Client) AddFoos(ctx context.Context, in []model.FooInput) ([]model.ID, error) {
	inputs := make([]model.FooInput, 0, len(in))
	for _, f := range in {
		inputs = append(inputs, withThings(f))
	}
	var data struct {
		AddFoos []model.ID `json:"addFoos"`
	}
	err := c.call(ctx, MutationAddFoos, map[string]any{"input": inputs}, &data)
	return data.AddFoos, err
}

func (c *Client) DeleteFoo(ctx context.Context, id model.ID) (bool, error) {
	var data struct {
		DeleteFoos bool `json:"deleteFoos"`
	}
	err := c.call(ctx, MutationDelete, map[string]any{"fooId": id.Hex()}, &data)
	return data.DeleteFoos, err
}

func (c *Client) AddThing(ctx context.Context, fooID model.ID, in model.ThingInput) (model.UpdateStats, error) {
	var data struct {
		AddThing model.UpdateStats `json:"addThing"`
	}
	err := c.call(ctx, MutationAddThing, map[string]any{"fooId": fooID.Hex(), "input": in}, &data)
	return data.AddThing, err
}

// withThings replaces nil things with an empty list, which the schema
// requires.
func withThings(in model.FooInput) model.FooInput {
	if in.Things == nil {
		in.Things = []model.Thing{}
	}
	return in
}
