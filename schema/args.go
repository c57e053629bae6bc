package schema

import (
	"fmt"

	"github.com/stevemurr/foogate/apperr"
	"github.com/stevemurr/foogate/model"
)

// The executor has already coerced arguments to the declared input types;
// these helpers only move them into model values. A mismatch here means the
// schema and the helpers disagree.

func idArg(v interface{}) (model.ID, error) {
	id, ok := v.(model.ID)
	if !ok {
		return model.ID{}, apperr.NewDecode("argument", fmt.Errorf("expected ObjectId, got %T", v))
	}
	return id, nil
}

func fooInputArg(v interface{}) (model.FooInput, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return model.FooInput{}, apperr.NewDecode("argument", fmt.Errorf("expected FooInput object, got %T", v))
	}
	s, ok := m["fooString"].(string)
	if !ok {
		return model.FooInput{}, apperr.NewDecode("argument", fmt.Errorf("FooInput.fooString: expected string, got %T", m["fooString"]))
	}
	raw, ok := m["things"].([]interface{})
	if !ok {
		return model.FooInput{}, apperr.NewDecode("argument", fmt.Errorf("FooInput.things: expected list, got %T", m["things"]))
	}
	in := model.FooInput{FooString: s, Things: make([]model.Thing, 0, len(raw))}
	for i, t := range raw {
		thing, err := thingInputArg(t)
		if err != nil {
			return model.FooInput{}, apperr.NewDecode("argument", fmt.Errorf("FooInput.things[%d]: %w", i, err))
		}
		in.Things = append(in.Things, thing)
	}
	return in, nil
}

func fooInputsArg(v interface{}) ([]model.FooInput, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, apperr.NewDecode("argument", fmt.Errorf("expected list of FooInput, got %T", v))
	}
	out := make([]model.FooInput, 0, len(raw))
	for _, item := range raw {
		in, err := fooInputArg(item)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func thingInputArg(v interface{}) (model.ThingInput, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return model.ThingInput{}, apperr.NewDecode("argument", fmt.Errorf("expected ThingInput object, got %T", v))
	}
	id, err := idArg(m["id"])
	if err != nil {
		return model.ThingInput{}, err
	}
	info, ok := m["thingInfo"].(string)
	if !ok {
		return model.ThingInput{}, apperr.NewDecode("argument", fmt.Errorf("ThingInput.thingInfo: expected string, got %T", m["thingInfo"]))
	}
	return model.ThingInput{ID: id, ThingInfo: info}, nil
}
