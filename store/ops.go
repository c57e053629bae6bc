package store

import (
	"bytes"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// The helpers below give the in-process backends the subset of query and
// update semantics the resolvers rely on: equality filters and $push.

// withID returns doc with an "_id" field, generating an ObjectId if needed.
func withID(doc bson.Raw) (bson.Raw, bson.RawValue, error) {
	if err := doc.Validate(); err != nil {
		return nil, bson.RawValue{}, err
	}
	if v, err := doc.LookupErr("_id"); err == nil {
		return doc, v, nil
	}
	var rest bson.D
	if err := bson.Unmarshal(doc, &rest); err != nil {
		return nil, bson.RawValue{}, err
	}
	d := append(bson.D{{Key: "_id", Value: bson.NewObjectID()}}, rest...)
	b, err := bson.Marshal(d)
	if err != nil {
		return nil, bson.RawValue{}, err
	}
	out := bson.Raw(b)
	return out, out.Lookup("_id"), nil
}

// docKey is a stable string form of an "_id" value.
func docKey(v bson.RawValue) string {
	return fmt.Sprintf("%02x:%x", byte(v.Type), v.Value)
}

// idValue converts an "_id" into the Go value a driver would report.
func idValue(v bson.RawValue) any {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid
	}
	return v
}

// checkFilter rejects query operators. Only field equality is supported.
func checkFilter(filter bson.D) error {
	for _, e := range filter {
		if strings.HasPrefix(e.Key, "$") {
			return fmt.Errorf("%w: filter %s", ErrUnsupported, e.Key)
		}
	}
	return nil
}

// filterKey returns the document key when filter is an exact "_id" match.
func filterKey(filter bson.D) (string, bool, error) {
	if len(filter) != 1 || filter[0].Key != "_id" {
		return "", false, nil
	}
	t, data, err := bson.MarshalValue(filter[0].Value)
	if err != nil {
		return "", false, err
	}
	return docKey(bson.RawValue{Type: t, Value: data}), true, nil
}

func matches(doc bson.Raw, filter bson.D) (bool, error) {
	for _, e := range filter {
		t, data, err := bson.MarshalValue(e.Value)
		if err != nil {
			return false, err
		}
		got, err := doc.LookupErr(strings.Split(e.Key, ".")...)
		if err != nil {
			return false, nil
		}
		if got.Type != t || !bytes.Equal(got.Value, data) {
			return false, nil
		}
	}
	return true, nil
}

// applyUpdate returns doc with update applied and whether anything changed.
func applyUpdate(doc bson.Raw, update bson.D) (bson.Raw, bool, error) {
	if len(update) == 0 {
		return nil, false, fmt.Errorf("%w: empty update document", ErrUnsupported)
	}
	var d bson.D
	if err := bson.Unmarshal(doc, &d); err != nil {
		return nil, false, err
	}
	modified := false
	for _, op := range update {
		if op.Key != "$push" {
			return nil, false, fmt.Errorf("%w: update %s", ErrUnsupported, op.Key)
		}
		fields, err := toD(op.Value)
		if err != nil {
			return nil, false, err
		}
		for _, f := range fields {
			if f.Key == "_id" {
				return nil, false, &WriteException{WriteErrors: []WriteError{{
					Code:    CodeBadValue,
					Message: "Performing an update on the path '_id' would modify the immutable field '_id'",
				}}}
			}
			if d, err = push(d, f.Key, f.Value); err != nil {
				return nil, false, err
			}
			modified = true
		}
	}
	b, err := bson.Marshal(d)
	if err != nil {
		return nil, false, err
	}
	return bson.Raw(b), modified, nil
}

func push(d bson.D, key string, v any) (bson.D, error) {
	for i := range d {
		if d[i].Key != key {
			continue
		}
		arr, ok := d[i].Value.(bson.A)
		if !ok {
			return nil, &WriteException{WriteErrors: []WriteError{{
				Code:    CodeBadValue,
				Message: fmt.Sprintf("The field '%s' must be an array but is of type %T", key, d[i].Value),
			}}}
		}
		d[i].Value = append(arr, v)
		return d, nil
	}
	return append(d, bson.E{Key: key, Value: bson.A{v}}), nil
}

func toD(v any) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func duplicateKey(index int, collection string, v bson.RawValue) WriteError {
	return WriteError{
		Index:   index,
		Code:    CodeDuplicateKey,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %s }", collection, v),
	}
}

func clone(raw bson.Raw) bson.Raw {
	return append(bson.Raw(nil), raw...)
}
