package domain

import "time"

// Event types
const (
	EventTypeEntryPosted      = "journal.entry_posted"
	EventTypeEntryReversed    = "journal.entry_reversed"
	EventTypeMovementRecorded = "stock.movement_recorded"
	EventTypeSagaCommitted    = "fulfillment.saga_committed"
)

// Aggregate types
const (
	AggregateTypeJournalEntry  = "journal_entry"
	AggregateTypeStockMovement = "stock_movement"
	AggregateTypeSaga          = "fulfillment_saga"
)

// OutboxEvent represents an event to be published. Events are written
// in the same transaction as the state change they describe.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryPostedEvent payload
type EntryPostedEvent struct {
	EntryID   string `json:"entry_id"`
	CompanyID string `json:"company_id"`
	Seq       int64  `json:"seq"`
	Date      string `json:"date"`
	LineCount int    `json:"line_count"`
}

// EntryReversedEvent payload
type EntryReversedEvent struct {
	ReversalEntryID string `json:"reversal_entry_id"`
	OriginalEntryID string `json:"original_entry_id"`
	CompanyID       string `json:"company_id"`
}

// MovementRecordedEvent payload
type MovementRecordedEvent struct {
	MovementID  string `json:"movement_id"`
	CompanyID   string `json:"company_id"`
	VariantID   string `json:"variant_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    string `json:"quantity"`
	UnitCost    string `json:"unit_cost"`
	Type        string `json:"type"`
}

// SagaCommittedEvent payload
type SagaCommittedEvent struct {
	SagaID   string `json:"saga_id"`
	SagaType string `json:"saga_type"`
	OrderRef string `json:"order_ref"`
}
