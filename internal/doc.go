// Package internal documents the In The Know YYC server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: events, users, and sessions business logic
// - storage: Postgres repositories and migrations (pgx)
// - jobs: River background workers
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
