// Package main is the todoserver executable.
//
// The HTTP API (internal/api) serves todo CRUD, multipart uploads and a
// per-todo progress stream. Progress is a simulated upload: a random walk from
// 0 to 100 percent, one frame per tick, sent as Server-Sent Events on
// /todos/{id}/progress or as WebSocket text messages on
// /todos/{id}/progress/ws. Each stream is an independent session.
//
// Todos live in memory, Badger or Postgres; uploads go to memory, the local
// filesystem or GCS; change notifications and session audits go to Pub/Sub
// when a topic is configured. Configuration comes from a YAML file plus
// TODO_* environment variables.
//
//	todoserver serve --config config.yaml
//	todoserver openapi --format yaml
//	todoserver watch <todo-id> --addr http://localhost:8080
package main

import "github.com/JakeFAU/todo-progress/cmd"

func main() {
	cmd.Execute()
}
