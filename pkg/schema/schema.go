// Package schema compiles JSON Schema documents once and validates request
// payloads against them at the HTTP boundary.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const baseURL = "https://travel.schemas.local/"

type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles the draft 2020-12 schema src registered under name.
func Compile(name, src string) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	url := baseURL + name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}

	return &Validator{name: name, schema: compiled}, nil
}

// MustCompile is Compile for package-level schemas known at build time.
func MustCompile(name, src string) *Validator {
	v, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return v
}

// ValidationError carries the flattened list of schema violations.
type ValidationError struct {
	Schema string
	Causes []string
}

func (e *ValidationError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("%s: invalid payload", e.Schema)
	}
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(e.Causes, "; "))
}

// Validate checks raw JSON bytes against the compiled schema.
func (v *Validator) Validate(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Schema: v.name, Causes: []string{"malformed JSON: " + err.Error()}}
	}

	if err := v.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Schema: v.name, Causes: flatten(verr)}
		}
		return fmt.Errorf("%s: %w", v.name, err)
	}

	return nil
}

func flatten(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + err.Message}
	}

	var out []string
	for _, c := range err.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}
