package domain

import (
	"time"
)

// SagaType identifies the business operation a fulfillment saga runs.
type SagaType string

const (
	SagaTypeSalesFulfillment SagaType = "sales_fulfillment"
	SagaTypePurchaseReceipt  SagaType = "purchase_receipt"
)

// SagaState is one step of the fulfillment state machine.
type SagaState string

const (
	SagaStatePending        SagaState = "pending"
	SagaStateStockApplied   SagaState = "stock_applied"
	SagaStateJournalApplied SagaState = "journal_applied"
	SagaStateCommitted      SagaState = "committed"
	SagaStateAborted        SagaState = "aborted"
)

var sagaTransitions = map[SagaState][]SagaState{
	SagaStatePending:        {SagaStateStockApplied, SagaStateAborted},
	SagaStateStockApplied:   {SagaStateJournalApplied, SagaStateAborted},
	SagaStateJournalApplied: {SagaStateCommitted, SagaStateAborted},
}

// FulfillmentSaga tracks a multi-step order-to-ledger operation. The
// stock and journal writes run in one transaction, so the observable
// outcome is always committed or aborted; the intermediate states make
// partial-failure handling independently testable.
type FulfillmentSaga struct {
	ID           string
	CompanyID    string
	Type         SagaType
	OrderRef     string
	State        SagaState
	EntryIDs     []string
	MovementIDs  []string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewFulfillmentSaga starts a saga in the pending state.
func NewFulfillmentSaga(id, companyID string, sagaType SagaType, orderRef string, now time.Time) *FulfillmentSaga {
	return &FulfillmentSaga{
		ID:        id,
		CompanyID: companyID,
		Type:      sagaType,
		OrderRef:  orderRef,
		State:     SagaStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the saga to the next state, rejecting jumps the
// state machine does not allow.
func (s *FulfillmentSaga) Transition(to SagaState, now time.Time) error {
	for _, allowed := range sagaTransitions[s.State] {
		if allowed == to {
			s.State = to
			s.UpdatedAt = now

			return nil
		}
	}

	return ErrInvalidSagaState
}

// Fail aborts the saga from any non-terminal state and records the
// cause.
func (s *FulfillmentSaga) Fail(err error, now time.Time) {
	if s.Terminal() {
		return
	}

	s.State = SagaStateAborted
	if err != nil {
		s.ErrorMessage = err.Error()
	}
	s.UpdatedAt = now
}

// Terminal reports whether the saga reached a final state.
func (s *FulfillmentSaga) Terminal() bool {
	return s.State == SagaStateCommitted || s.State == SagaStateAborted
}
