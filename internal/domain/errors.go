package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Chart of accounts errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateCode      = errors.New("account code already exists for company")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrTypeImmutable      = errors.New("account type is immutable once posted to")
	ErrInvalidAccountType = errors.New("invalid account type")

	// Journal errors
	ErrEntryNotFound   = errors.New("journal entry not found")
	ErrUnknownAccount  = errors.New("line references unknown or inactive account")
	ErrAmbiguousLine   = errors.New("line must carry exactly one of debit or credit")
	ErrUnbalanced      = errors.New("entry does not balance in base currency")
	ErrTooFewLines     = errors.New("entry requires at least two lines")
	ErrNotPosted       = errors.New("entry is not posted")
	ErrAlreadyReversed = errors.New("entry is already reversed")
	ErrMissingRate     = errors.New("foreign currency entry requires an exchange rate")

	// Money errors
	ErrInvalidScale    = errors.New("cannot combine amounts of different currencies without conversion")
	ErrUnknownCurrency = errors.New("unknown currency code")
	ErrInvalidRate     = errors.New("exchange rate must be positive")
	ErrRateNotFound    = errors.New("no exchange rate for currency pair at date")
	ErrCompanyNotFound = errors.New("company not found")

	// Stock errors
	ErrInsufficientStock        = errors.New("insufficient stock for outbound movement")
	ErrNegativeBalanceProjected = errors.New("replay projects a negative stock balance")
	ErrInvalidQuantity          = errors.New("movement quantity must be non-zero")
	ErrUnitCostRequired         = errors.New("inbound movement requires a unit cost")
	ErrUnitCostNotAllowed       = errors.New("outbound movement must not supply a unit cost")
	ErrMovementNotFound         = errors.New("stock movement not found")

	// Saga errors
	ErrSagaNotFound         = errors.New("fulfillment saga not found")
	ErrInvalidSagaState     = errors.New("invalid saga state transition")
	ErrEmptyOrder           = errors.New("order has no lines")
	ErrInvalidOrderQuantity = errors.New("order line quantity must be positive")
)

// UnbalancedError reports the computed imbalance of a rejected entry,
// expressed in the company's base currency.
type UnbalancedError struct {
	Delta    decimal.Decimal
	Currency string
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("entry does not balance: delta %s %s", e.Delta.String(), e.Currency)
}

// Is lets errors.Is match the ErrUnbalanced sentinel.
func (e *UnbalancedError) Is(target error) bool {
	return target == ErrUnbalanced
}

// InsufficientStockError reports available vs requested quantity for a
// rejected outbound movement.
type InsufficientStockError struct {
	VariantID   string
	WarehouseID string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s in warehouse %s: available %s, requested %s",
		e.VariantID, e.WarehouseID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// UnknownAccountError identifies the offending line and account.
type UnknownAccountError struct {
	AccountID string
	LineIndex int
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("line %d references unknown or inactive account %s", e.LineIndex, e.AccountID)
}

func (e *UnknownAccountError) Is(target error) bool {
	return target == ErrUnknownAccount
}

// IsValidationError reports whether err is a caller-fixable business
// rejection. Validation errors are never retried.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrUnbalanced, ErrTooFewLines, ErrAmbiguousLine, ErrUnknownAccount,
		ErrDuplicateCode, ErrInvalidScale, ErrMissingRate,
		ErrUnitCostRequired, ErrUnitCostNotAllowed, ErrInvalidQuantity,
		ErrInvalidOrderQuantity, ErrEmptyOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsConsistencyError reports whether err is a consistency rejection.
// Like validation errors, consistency errors are never retried.
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrNegativeBalanceProjected)
}
