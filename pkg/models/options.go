package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidOptions indicates element options do not match the element type schema.
var ErrInvalidOptions = errors.New("invalid element options")

// WaitOptions configures a wait element.
type WaitOptions struct {
	Minutes int `json:"minutes"`
}

var optionSchemas = map[ElementType]*gojsonschema.Schema{
	ElementTypeWait: mustSchema(`{
		"type": "object",
		"required": ["minutes"],
		"properties": {
			"minutes": {"type": "integer", "minimum": 0}
		}
	}`),
}

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Errorf("invalid element options schema: %w", err))
	}

	return schema
}

// ValidateOptions checks the element options against the schema of its type.
// Types without a schema accept any options.
func (e *Element) ValidateOptions() error {
	schema, ok := optionSchemas[e.Type]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(e.rawOptions()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(messages, "; "))
	}

	return nil
}

// WaitOptions decodes the options of a wait element.
func (e *Element) WaitOptions() (*WaitOptions, error) {
	if e.Type != ElementTypeWait {
		return nil, fmt.Errorf("%w: element %s is %s, not wait", ErrInvalidOptions, e.ID, e.Type)
	}

	if err := e.ValidateOptions(); err != nil {
		return nil, err
	}

	var options WaitOptions
	if err := json.Unmarshal(e.rawOptions(), &options); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return &options, nil
}

func (e *Element) rawOptions() []byte {
	if len(e.Options) == 0 || string(e.Options) == "null" {
		return []byte("{}")
	}

	return e.Options
}
