// Package events contains the messages pushed to dashboard clients over the
// websocket as files are ingested.
package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeConnect MessageType = "connect"

	MessageTypeFileIngested MessageType = "ingest:file"
	MessageTypeFileSkipped  MessageType = "ingest:skipped"
	MessageTypeLoopState    MessageType = "ingest:state"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage stamps data with a fresh id and the current time.
func NewMessage(msgType MessageType, traceID string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			ID:        uuid.NewString(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}

// FileIngested reports a file written to the store. Dashboards refresh the
// affected subject when they receive it.
type FileIngested struct {
	SourceFile string `json:"source_file"`
	RatID      int    `json:"rat_id"`
	Stage      int    `json:"stage"`
	Session    int    `json:"session"`
	Date       string `json:"date"`
	Trials     int    `json:"trials"`
	Summaries  int    `json:"summaries"`
	DurationMS int64  `json:"duration_ms"`
}

// FileSkipped reports a file that produced no writes.
type FileSkipped struct {
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}

// LoopState reports an ingestion loop state change.
type LoopState struct {
	State string `json:"state"`
}
