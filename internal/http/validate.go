package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks request documents against per-resource JSON Schemas.
// Partial schemas are the full ones without "required", for PATCH.
type Validator struct {
	full    map[string]*jsonschema.Schema
	partial map[string]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas for resources.
func NewValidator(resources ...string) (*Validator, error) {
	v := &Validator{
		full:    make(map[string]*jsonschema.Schema),
		partial: make(map[string]*jsonschema.Schema),
	}
	for _, res := range resources {
		raw, err := schemaFS.ReadFile("schemas/" + res + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", res, err)
		}
		full, err := compileSchema(res, raw)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("schema %s: %w", res, err)
		}
		delete(m, "required")
		rawPartial, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", res, err)
		}
		partial, err := compileSchema(res+"-partial", rawPartial)
		if err != nil {
			return nil, err
		}
		v.full[res] = full
		v.partial[res] = partial
	}
	return v, nil
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://inventory.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return s, nil
}

// Validate checks doc for resource. partial skips required fields.
func (v *Validator) Validate(resource string, doc *model.Document, partial bool) error {
	set := v.full
	if partial {
		set = v.partial
	}
	if s, ok := set[resource]; ok {
		if err := s.Validate(doc.Map()); err != nil {
			return errors.New(describe(err))
		}
	}
	return checkPrice(doc)
}

func checkPrice(doc *model.Document) error {
	raw, ok := doc.Get("price")
	if !ok {
		return nil
	}
	var text string
	switch p := raw.(type) {
	case nil:
		return nil
	case fmt.Stringer:
		text = p.String()
	case string:
		text = p
	default:
		text = fmt.Sprint(p)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("price: %q is not a number", text)
	}
	if d.IsNegative() {
		return errors.New("price must be >= 0")
	}
	return nil
}

// describe flattens a schema error into "location: message" pairs.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var parts []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, "; ")
}
