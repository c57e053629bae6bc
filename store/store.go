// Package store defines the document collection interface and its backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection is a handle to one collection of BSON documents. Implementations
// are safe for concurrent use.
//
// Write methods have three outcomes: a result, a *WriteException when the
// store attempted the write and reported a failure, or any other error when
// the command could not be issued at all.
type Collection interface {
	// Find returns every document in natural order.
	Find(ctx context.Context) ([]bson.Raw, error)

	// FindOne returns the first document matching filter, or nil if none does.
	FindOne(ctx context.Context, filter bson.D) (bson.Raw, error)

	// InsertOne inserts doc, generating an ObjectId "_id" when it has none.
	InsertOne(ctx context.Context, doc bson.Raw) (*InsertOneResult, error)

	// InsertMany inserts docs as one batch. InsertedIDs follows the order of docs.
	InsertMany(ctx context.Context, docs []bson.Raw) (*InsertManyResult, error)

	// DeleteOne removes the first document matching filter.
	DeleteOne(ctx context.Context, filter bson.D) (*DeleteResult, error)

	// UpdateOne applies update to the first document matching filter.
	UpdateOne(ctx context.Context, filter, update bson.D) (*UpdateResult, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

type InsertOneResult struct {
	InsertedID any
}

type InsertManyResult struct {
	InsertedIDs []any
}

type DeleteResult struct {
	DeletedCount int64
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	// UpsertedID is set only when the update created a new document.
	UpsertedID any
}

// Error codes used by the in-process backends. They match the server's.
const (
	CodeBadValue     = 2
	CodeDuplicateKey = 11000
)

// ErrUnsupported is returned by the in-process backends for filter or update
// operators they do not implement.
var ErrUnsupported = errors.New("unsupported operator")

// WriteError describes one failed write within a command.
type WriteError struct {
	Index   int
	Code    int
	Message string
}

// WriteException is a failure reported by the store after it attempted a
// write.
type WriteException struct {
	WriteErrors  []WriteError
	ConcernError string
}

func (e *WriteException) Error() string {
	var parts []string
	for _, we := range e.WriteErrors {
		parts = append(parts, fmt.Sprintf("write error at index %d (code %d): %s", we.Index, we.Code, we.Message))
	}
	if e.ConcernError != "" {
		parts = append(parts, "write concern error: "+e.ConcernError)
	}
	if len(parts) == 0 {
		return "write exception"
	}
	return strings.Join(parts, "; ")
}

// HasCode reports whether any write error carries code.
func (e *WriteException) HasCode(code int) bool {
	for _, we := range e.WriteErrors {
		if we.Code == code {
			return true
		}
	}
	return false
}
