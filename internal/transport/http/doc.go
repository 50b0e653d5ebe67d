// Package http implements the read API handlers. Handlers stay thin: they
// parse and validate query parameters, call a service and render the
// result. Business rules live in internal/services.
//
// # Routes
//
//	GET /api/health          store, ingestion loop and hub health
//	GET /api/version         build information
//	GET /api/summaries       daily summaries as JSON
//	GET /api/summaries.csv   the same rows as a CSV download
//	GET /api/subjects        subject ids with stored summaries
//	GET /metrics             Prometheus exposition
//
// Summary routes accept rat (repeated or comma separated), stage (0..3) and
// exclude_stage0=true.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "rat must be between 1 and 19",
//	    "instance": "/api/summaries",
//	    "error_code": "INVALID_PARAMETER"
//	}
package http
