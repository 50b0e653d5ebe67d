// Package services implements the read side of the pipeline. It sits
// between the HTTP handlers and the store, so handlers never talk to a
// backend directly.
//
// # Services
//
//	SummaryService  lists daily summaries and subjects, and streams them as CSV
//	HealthService   reports store, ingestion loop and WebSocket hub health
//
// Services take their dependencies through constructors and accept a
// context.Context on every call that may block. Store failures are returned
// as STORAGE AppErrors so the HTTP layer can map them to 503 responses.
package services
