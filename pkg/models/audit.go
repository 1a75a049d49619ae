package models

import "time"

// AuditAction is the kind of change recorded by an audit entry.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditEntry records one change to an entity for the audit trail.
type AuditEntry struct {
	ID         string         `json:"audit_id"`
	EntityType string         `json:"entity_type" validate:"required"`
	EntityID   string         `json:"entity_id"   validate:"required"`
	Action     AuditAction    `json:"action"      validate:"required,oneof=create update delete"`
	UserID     string         `json:"user_id"`
	OldData    map[string]any `json:"old_data,omitempty"`
	NewData    map[string]any `json:"new_data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
}
