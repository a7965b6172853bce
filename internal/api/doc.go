// Package api hosts the HTTP server, middleware, and REST handlers of the todo
// service. Notable routes:
//   - GET/POST /todos and GET/PUT/DELETE /todos/{id} for todo CRUD, with
//     request bodies checked against the embedded JSON schemas.
//   - POST /todos/{id}/upload for multipart file uploads into the blob store.
//   - GET /todos/{id}/progress for the text/event-stream progress feed, and
//     /todos/{id}/progress/ws for the same frames over WebSocket.
//   - GET /docs and /docs.yaml for the OpenAPI document.
//   - GET /healthz / readyz for Kubernetes probes and /metrics for Prometheus.
//
// The progress routes sit outside the request timeout so a stream is bounded
// only by its own session lifecycle.
package api
