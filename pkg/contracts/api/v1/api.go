// Package api contains the read API contract of the Williams data pipeline.
// Version v1 represents the current stable API version.
package api

import (
	"time"

	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// SummaryQuery holds the query parameters accepted by /api/summaries and
// /api/summaries.csv.
type SummaryQuery struct {
	RatIDs           []int `query:"rat" validate:"dive,min=1"`
	Stages           []int `query:"stage" validate:"dive,min=0,max=3"`
	ExcludeStageZero bool  `query:"exclude_stage0"`
}

// SummariesResponse wraps a list of daily summaries.
type SummariesResponse struct {
	Count     int                   `json:"count"`
	Summaries []domain.DailySummary `json:"summaries"`
}

// SubjectsResponse lists subject ids with stored summaries.
type SubjectsResponse struct {
	Subjects []int `json:"subjects"`
}

// ComponentHealth is the health of one dependency.
type ComponentHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     float64                    `json:"uptime_seconds"`
	Components map[string]ComponentHealth `json:"components"`
}

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)
