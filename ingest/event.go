// Package ingest implements the event processing engine (C9): routing a
// single incoming event into the HyperLogLog, Bloom filter, and Top-K
// updates that back the query surface, then publishing it to the live
// event stream.
package ingest

import "time"

// Type is the kind of event being recorded for compliance tracking.
type Type string

const (
	UserLogin      Type = "user_login"
	UserLogout     Type = "user_logout"
	APIAccess      Type = "api_access"
	DatabaseAccess Type = "database_access"
	FileAccess     Type = "file_access"
	SecurityEvent  Type = "security_event"
	ErrorEvent     Type = "error_event"
	AdminAction    Type = "admin_action"
	Custom         Type = "custom"
)

// Event is a single compliance-relevant occurrence.
type Event struct {
	EventType Type           `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	System    string         `json:"system"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// metaString reads a string-valued metadata field, returning ("", false)
// if absent or not a string.
func (e Event) metaString(key string) (string, bool) {
	if e.Metadata == nil {
		return "", false
	}
	v, ok := e.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
