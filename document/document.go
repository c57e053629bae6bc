// Package document converts between the typed model and the store's BSON
// documents.
//
// Field names on the document side come from `bson` struct tags. Encode
// rejects values that are not documents, and both directions check the
// document against the declared fields of the Go type, so a value that
// encodes also decodes.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/stevemurr/foogate/apperr"
)

var objectIDType = reflect.TypeOf(bson.ObjectID{})

// Encode returns the document form of v. Nil slices are written as empty
// arrays.
func Encode(v any) (bson.Raw, error) {
	op := "encode " + typeName(v)
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, apperr.NewEncode(op, fmt.Errorf("value of type %s is not a document", typeName(v)))
	}

	buf := new(bytes.Buffer)
	enc := bson.NewEncoder(bson.NewDocumentWriter(buf))
	enc.NilSliceAsEmpty()
	if err := enc.Encode(v); err != nil {
		return nil, apperr.NewEncode(op, err)
	}
	raw := bson.Raw(buf.Bytes())
	if err := checkShape(raw, t, "$"); err != nil {
		return nil, apperr.NewEncode(op, err)
	}
	return raw, nil
}

// Decode converts a document into T. It fails when a required field is
// absent or has a BSON type that does not fit the Go field.
func Decode[T any](raw bson.Raw) (T, error) {
	var out T
	op := "decode " + typeName(out)
	if err := raw.Validate(); err != nil {
		return out, apperr.NewDecode(op, err)
	}
	if t := reflect.TypeOf(out); t != nil && t.Kind() == reflect.Struct {
		if err := checkShape(raw, t, "$"); err != nil {
			return out, apperr.NewDecode(op, err)
		}
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, apperr.NewDecode(op, err)
	}
	return out, nil
}

// DecodeAll decodes docs in order and stops at the first failure.
func DecodeAll[T any](docs []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, raw := range docs {
		v, err := Decode[T](raw)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				ae.Op = fmt.Sprintf("%s[%d]", ae.Op, i)
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ObjectID extracts an identifier from a value reported by the store.
func ObjectID(v any) (bson.ObjectID, error) {
	switch id := v.(type) {
	case bson.ObjectID:
		return id, nil
	case *bson.ObjectID:
		if id != nil {
			return *id, nil
		}
	case bson.RawValue:
		if oid, ok := id.ObjectIDOK(); ok {
			return oid, nil
		}
		return bson.ObjectID{}, apperr.NewDecode("decode identifier", fmt.Errorf("identifier has BSON type %s, want objectId", id.Type))
	}
	return bson.ObjectID{}, apperr.NewDecode("decode identifier", fmt.Errorf("identifier %v (%T) is not an ObjectId", v, v))
}

func checkShape(raw bson.Raw, t reflect.Type, path string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty := fieldName(f)
		if name == "-" {
			continue
		}
		val, err := raw.LookupErr(name)
		if err != nil {
			if omitempty {
				continue
			}
			return fmt.Errorf("%s: missing required field %q", path, name)
		}
		if err := checkValue(val, f.Type, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(val bson.RawValue, t reflect.Type, path string) error {
	if t == objectIDType {
		return expectType(val, path, bson.TypeObjectID)
	}
	switch t.Kind() {
	case reflect.Pointer:
		if val.Type == bson.TypeNull {
			return nil
		}
		return checkValue(val, t.Elem(), path)
	case reflect.String:
		return expectType(val, path, bson.TypeString)
	case reflect.Bool:
		return expectType(val, path, bson.TypeBoolean)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return expectType(val, path, bson.TypeInt32, bson.TypeInt64)
	case reflect.Float32, reflect.Float64:
		return expectType(val, path, bson.TypeDouble, bson.TypeInt32, bson.TypeInt64)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return expectType(val, path, bson.TypeBinary)
		}
		if err := expectType(val, path, bson.TypeArray); err != nil {
			return err
		}
		elems, err := val.Array().Values()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for i, elem := range elems {
			if err := checkValue(elem, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if err := expectType(val, path, bson.TypeEmbeddedDocument); err != nil {
			return err
		}
		return checkShape(val.Document(), t, path)
	}
	return nil
}

func expectType(val bson.RawValue, path string, want ...bson.Type) error {
	for _, w := range want {
		if val.Type == w {
			return nil
		}
	}
	return fmt.Errorf("%s: expected type %q, got %q", path, want[0].String(), val.Type.String())
}

func fieldName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("bson")
	if !ok {
		return strings.ToLower(f.Name), false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	omitempty := false
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
