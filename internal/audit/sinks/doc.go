// Package sinks implements audit.Sink consumers: structured logging and
// notification publishing.
package sinks
