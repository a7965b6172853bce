package todo

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema file names.
const (
	SchemaCreate = "create-todo.json"
	SchemaUpdate = "update-todo.json"
)

const schemaBaseURL = "https://todo-progress.local/schemas/"

// ErrInvalidJSON is returned when a request body is not a JSON document.
var ErrInvalidJSON = errors.New("invalid JSON body")

// ValidationError is one schema violation.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every violation found in a document.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Validator checks request bodies against the compiled todo schemas.
type Validator struct {
	create *jsonschema.Schema
	update *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	for _, name := range []string{SchemaCreate, SchemaUpdate} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	create, err := compiler.Compile(schemaBaseURL + SchemaCreate)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	update, err := compiler.Compile(schemaBaseURL + SchemaUpdate)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{create: create, update: update}, nil
}

// DecodeCreate validates body and decodes it into a CreateRequest.
func (v *Validator) DecodeCreate(body []byte) (CreateRequest, error) {
	var req CreateRequest
	if err := decodeValid(v.create, body, &req); err != nil {
		return CreateRequest{}, err
	}
	return req, nil
}

// DecodeUpdate validates body and decodes it into an UpdateRequest.
func (v *Validator) DecodeUpdate(body []byte) (UpdateRequest, error) {
	var req UpdateRequest
	if err := decodeValid(v.update, body, &req); err != nil {
		return UpdateRequest{}, err
	}
	return req, nil
}

// SchemaDocument returns an embedded schema as a generic JSON object with
// the JSON Schema meta keywords removed.
func SchemaDocument(name string) (map[string]any, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", name, err)
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	return doc, nil
}

func decodeValid(schema *jsonschema.Schema, body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("validate body: %w", err)
		}
		var out ValidationErrors
		collectSchemaErrors(ve, &out)
		return out
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func collectSchemaErrors(err *jsonschema.ValidationError, out *ValidationErrors) {
	if len(err.Causes) == 0 {
		*out = append(*out, ValidationError{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, out)
	}
}

// pointerToPath turns "/a/b" into "a.b".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	return strings.ReplaceAll(ptr, "/", ".")
}
