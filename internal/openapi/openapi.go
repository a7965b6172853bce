// Package openapi builds the OpenAPI 3.0 description of the todo API.
package openapi

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/todo-progress/internal/todo"
)

// Document is the subset of the OpenAPI 3.0 object model the API uses.
type Document struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       Info                `json:"info" yaml:"info"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components Components          `json:"components" yaml:"components"`
}

// Info describes the API.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PathItem groups the operations of one path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *Operation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *Operation `json:"put,omitempty" yaml:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Operation is one method on a path.
type Operation struct {
	OperationID string              `json:"operationId" yaml:"operationId"`
	Summary     string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	Tags        []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses" yaml:"responses"`
}

// Parameter is a path or query parameter.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	In          string `json:"in" yaml:"in"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      Schema `json:"schema" yaml:"schema"`
}

// RequestBody describes an operation's body.
type RequestBody struct {
	Required bool                 `json:"required" yaml:"required"`
	Content  map[string]MediaType `json:"content" yaml:"content"`
}

// Response describes one status code.
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType binds a schema to a content type.
type MediaType struct {
	Schema Schema `json:"schema" yaml:"schema"`
}

// Components holds the reusable schemas.
type Components struct {
	Schemas map[string]Schema `json:"schemas" yaml:"schemas"`
}

// Schema is a JSON Schema object kept as a generic map.
type Schema map[string]any

const (
	title   = "Todo API"
	version = "1.0.0"
	tagTodo = "Todos"
)

func ref(name string) Schema {
	return Schema{"$ref": "#/components/schemas/" + name}
}

func jsonContent(s Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

var idParam = Parameter{
	Name:        "id",
	In:          "path",
	Required:    true,
	Description: "The ID of the todo",
	Schema:      Schema{"type": "string", "format": "uuid"},
}

var notFound = Response{Description: "Todo not found", Content: jsonContent(ref("Error"))}

// Build assembles the document for every route the server exposes.
func Build() (*Document, error) {
	create, err := todo.SchemaDocument(todo.SchemaCreate)
	if err != nil {
		return nil, fmt.Errorf("load create schema: %w", err)
	}
	update, err := todo.SchemaDocument(todo.SchemaUpdate)
	if err != nil {
		return nil, fmt.Errorf("load update schema: %w", err)
	}

	invalid := Response{Description: "Request body failed validation", Content: jsonContent(ref("ValidationError"))}
	todoResponse := func(desc string) Response {
		return Response{Description: desc, Content: jsonContent(ref("Todo"))}
	}

	doc := &Document{
		OpenAPI: "3.0.0",
		Info: Info{
			Title:       title,
			Version:     version,
			Description: "Todo records with file uploads and a streamed upload progress feed.",
		},
		Paths: map[string]PathItem{
			"/todos": {
				Get: &Operation{
					OperationID: "listTodos",
					Summary:     "Returns all todos",
					Tags:        []string{tagTodo},
					Responses: map[string]Response{
						"200": {Description: "Returns all todos", Content: jsonContent(Schema{"type": "array", "items": ref("Todo")})},
					},
				},
				Post: &Operation{
					OperationID: "createTodo",
					Summary:     "Creates a new todo",
					Tags:        []string{tagTodo},
					RequestBody: &RequestBody{Required: true, Content: jsonContent(ref("CreateTodo"))},
					Responses: map[string]Response{
						"201": todoResponse("Creates a new todo"),
						"400": invalid,
					},
				},
			},
			"/todos/{id}": {
				Get: &Operation{
					OperationID: "getTodo",
					Summary:     "Returns a specific todo",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					Responses: map[string]Response{
						"200": todoResponse("Returns a specific todo"),
						"404": notFound,
					},
				},
				Put: &Operation{
					OperationID: "updateTodo",
					Summary:     "Updates a todo",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					RequestBody: &RequestBody{Required: true, Content: jsonContent(ref("UpdateTodo"))},
					Responses: map[string]Response{
						"200": todoResponse("Updates a todo"),
						"400": invalid,
						"404": notFound,
					},
				},
				Delete: &Operation{
					OperationID: "deleteTodo",
					Summary:     "Deletes a todo",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					Responses: map[string]Response{
						"204": {Description: "Deletes a todo"},
						"404": notFound,
					},
				},
			},
			"/todos/{id}/upload": {
				Post: &Operation{
					OperationID: "uploadTodoFile",
					Summary:     "Uploads a file to a todo",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					RequestBody: &RequestBody{
						Required: true,
						Content: map[string]MediaType{"multipart/form-data": {Schema: Schema{
							"type":       "object",
							"properties": map[string]any{"file": Schema{"type": "string", "format": "binary"}},
							"required":   []string{"file"},
						}}},
					},
					Responses: map[string]Response{
						"200": todoResponse("Uploads a file to a todo"),
						"400": {Description: "No file uploaded", Content: jsonContent(ref("Error"))},
						"404": notFound,
						"500": {Description: "File upload failed", Content: jsonContent(ref("Error"))},
					},
				},
			},
			"/todos/{id}/progress": {
				Get: &Operation{
					OperationID: "streamTodoProgress",
					Summary:     "Streams the upload progress using SSE",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					Responses: map[string]Response{
						"200": {
							Description: "Streams the upload progress using SSE",
							Content:     map[string]MediaType{"text/event-stream": {Schema: ref("ProgressEvent")}},
						},
						"404": notFound,
					},
				},
			},
			"/todos/{id}/progress/ws": {
				Get: &Operation{
					OperationID: "streamTodoProgressWebSocket",
					Summary:     "Streams the same progress frames over a WebSocket",
					Tags:        []string{tagTodo},
					Parameters:  []Parameter{idParam},
					Responses: map[string]Response{
						"101": {Description: "Switching protocols; each text message is one progress frame"},
						"404": notFound,
					},
				},
			},
		},
		Components: Components{Schemas: map[string]Schema{
			"Todo": {
				"type": "object",
				"properties": map[string]any{
					"id":          Schema{"type": "string", "format": "uuid"},
					"title":       Schema{"type": "string", "minLength": 1, "maxLength": 100},
					"description": Schema{"type": "string", "maxLength": 500},
					"completed":   Schema{"type": "boolean"},
					"fileUrl":     Schema{"type": "string"},
				},
				"required": []string{"id", "title", "completed"},
			},
			"CreateTodo": create,
			"UpdateTodo": update,
			"Error": {
				"type":       "object",
				"properties": map[string]any{"error": Schema{"type": "string"}},
				"required":   []string{"error"},
			},
			"ValidationError": {
				"type": "object",
				"properties": map[string]any{
					"error": Schema{"type": "string"},
					"details": Schema{"type": "array", "items": Schema{
						"type": "object",
						"properties": map[string]any{
							"path":    Schema{"type": "string"},
							"message": Schema{"type": "string"},
						},
					}},
				},
				"required": []string{"error"},
			},
			"ProgressEvent": {
				"type": "object",
				"properties": map[string]any{
					"id":       Schema{"type": "string", "format": "uuid"},
					"progress": Schema{"type": "number", "minimum": 0, "maximum": 100},
				},
				"required": []string{"id", "progress"},
			},
		}},
	}
	return doc, nil
}

// JSON renders the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi json: %w", err)
	}
	return data, nil
}

// YAML renders the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi yaml: %w", err)
	}
	return data, nil
}
