package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is one row of the append-only audit trail.
type AuditLog struct {
	ID           string
	Action       string
	ResourceType string
	ResourceID   string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionAccountCreate     AuditAction = "account.create"
	AuditActionAccountDeactivate AuditAction = "account.deactivate"
	AuditActionAccountChangeType AuditAction = "account.change_type"

	AuditActionEntryPost    AuditAction = "journal.post"
	AuditActionEntryReverse AuditAction = "journal.reverse"

	AuditActionMovementRecord AuditAction = "stock.movement"
	AuditActionCellRepair     AuditAction = "stock.cell_repair"

	AuditActionSagaFulfill AuditAction = "fulfillment.sales"
	AuditActionSagaReceive AuditAction = "fulfillment.purchase"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
