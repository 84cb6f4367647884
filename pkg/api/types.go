package api

import (
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind         string
	Port         int
	APIKey       string
	MaxBodyBytes int64 // Upper bound for an ingest request body
}

// SegmentResponse is returned after records were staged
type SegmentResponse struct {
	segment.Meta
	Skipped int `json:"skipped"` // Non-record protocol messages ignored
}

// SegmentListResponse lists staged segments
type SegmentListResponse struct {
	Segments []segment.Meta `json:"segments"`
	Count    int            `json:"count"`
}
