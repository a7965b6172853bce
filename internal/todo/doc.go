// Package todo defines the todo record, the collaborator interfaces the API
// depends on and JSON Schema validation of request bodies.
package todo
