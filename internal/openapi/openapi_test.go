package openapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildCoversEveryRoute(t *testing.T) {
	t.Parallel()

	doc, err := Build()
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.Equal(t, "Todo API", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)

	routes := map[string][]string{
		"/todos":                  {"get", "post"},
		"/todos/{id}":             {"get", "put", "delete"},
		"/todos/{id}/upload":      {"post"},
		"/todos/{id}/progress":    {"get"},
		"/todos/{id}/progress/ws": {"get"},
	}
	require.Len(t, doc.Paths, len(routes))
	for path, methods := range routes {
		item, ok := doc.Paths[path]
		require.True(t, ok, path)
		ops := map[string]*Operation{"get": item.Get, "post": item.Post, "put": item.Put, "delete": item.Delete}
		for _, m := range methods {
			require.NotNil(t, ops[m], "%s %s", m, path)
		}
	}
	for _, name := range []string{"Todo", "CreateTodo", "UpdateTodo", "Error", "ValidationError", "ProgressEvent"} {
		assert.Contains(t, doc.Components.Schemas, name)
	}
}

func TestJSONRendering(t *testing.T) {
	t.Parallel()

	doc, err := Build()
	require.NoError(t, err)
	data, err := doc.JSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "3.0.0", raw["openapi"])
	info := raw["info"].(map[string]any)
	assert.Equal(t, "Todo API", info["title"])

	paths := raw["paths"].(map[string]any)
	progress := paths["/todos/{id}/progress"].(map[string]any)["get"].(map[string]any)
	content := progress["responses"].(map[string]any)["200"].(map[string]any)["content"].(map[string]any)
	assert.Contains(t, content, "text/event-stream")

	create := raw["components"].(map[string]any)["schemas"].(map[string]any)["CreateTodo"].(map[string]any)
	assert.NotContains(t, create, "$schema")
	assert.Equal(t, []any{"title", "completed"}, create["required"])
}

func TestYAMLRendering(t *testing.T) {
	t.Parallel()

	doc, err := Build()
	require.NoError(t, err)
	data, err := doc.YAML()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "3.0.0", raw["openapi"])
	paths := raw["paths"].(map[string]any)
	assert.Contains(t, paths, "/todos/{id}/upload")
	del := paths["/todos/{id}"].(map[string]any)["delete"].(map[string]any)
	assert.Equal(t, "deleteTodo", del["operationId"])
}
