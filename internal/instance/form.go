package instance

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Form holds the values collected by the instance editor.
// Params is loosely typed until Transform turns it into a typed variant.
type Form struct {
	ID      int            `json:"id,omitempty"`
	Name    string         `json:"name"`
	Type    Type           `json:"type"`
	Enabled bool           `json:"enabled"`
	Params  map[string]any `json:"params,omitempty"`
}

// FormOf returns the editor values for an existing instance.
func FormOf(i Instance) (Form, error) {
	f := Form{
		ID:      i.ID,
		Name:    i.Name,
		Type:    i.Type,
		Enabled: i.Enabled,
		Params:  map[string]any{},
	}
	if strings.TrimSpace(i.Params) == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(i.Params), &f.Params); err != nil {
		return f, errors.Wrapf(err, "instance %d has malformed params", i.ID)
	}
	return f, nil
}

var manufacturerType = reflect.TypeOf(Manufacturer(0))

func manufacturerHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != manufacturerType || from.Kind() != reflect.String {
		return data, nil
	}
	return parseManufacturer(data.(string))
}

// Transform validates the form and produces the payload sent to the backend.
// Params are decoded into the variant for the form type and re-encoded, so
// unknown keys are dropped and values are normalized.
func Transform(f Form) (Instance, error) {
	var fields []FieldError
	name := strings.TrimSpace(f.Name)
	if name == "" {
		fields = append(fields, FieldError{Field: "name", Rule: "required"})
	}
	if !f.Type.Valid() {
		fields = append(fields, FieldError{Field: "type", Rule: "oneof"})
		return Instance{}, &ValidationError{Fields: fields}
	}

	p, err := NewParams(f.Type)
	if err != nil {
		return Instance{}, err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       manufacturerHook,
		Result:           p,
	})
	if err != nil {
		return Instance{}, errors.Wrap(err, "build params decoder")
	}
	if err := dec.Decode(f.Params); err != nil {
		fields = append(fields, FieldError{Field: "params", Rule: "decode"})
		return Instance{}, &ValidationError{Fields: fields}
	}

	if err := ValidateParams(p); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return Instance{}, err
		}
		fields = append(fields, ve.Fields...)
	}
	if len(fields) > 0 {
		return Instance{}, &ValidationError{Fields: fields}
	}

	raw, err := EncodeParams(p)
	if err != nil {
		return Instance{}, err
	}
	return Instance{
		ID:      f.ID,
		Name:    name,
		Type:    f.Type,
		Enabled: f.Enabled,
		Params:  raw,
	}, nil
}
