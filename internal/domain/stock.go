package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementTypeIn       MovementType = "in"
	MovementTypeOut      MovementType = "out"
	MovementTypeAdjust   MovementType = "adjust"
	MovementTypeTransfer MovementType = "transfer"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeAdjust, MovementTypeTransfer:
		return true
	}

	return false
}

// StockMovement is one append-only row of the stock event log.
// Quantity is signed: positive inbound, negative outbound. UnitCost is
// caller-supplied for inbound movements and computed from the cell's
// weighted-average cost for outbound ones. Seq is the insertion
// sequence; replay order is (MovementDate, Seq).
type StockMovement struct {
	ID           string
	Seq          int64
	CompanyID    string
	VariantID    string
	WarehouseID  string
	Quantity     decimal.Decimal
	Type         MovementType
	Reference    *string
	UnitCost     decimal.Decimal
	MovementDate time.Time
	CreatedAt    time.Time
}

// Inbound reports whether the movement adds stock.
func (m *StockMovement) Inbound() bool {
	return m.Quantity.IsPositive()
}

// StockLevel is the materialized projection for one (variant,
// warehouse) cell. It is derived from the movement log, maintained in
// the same transaction that appends a movement, and reconstructible by
// replay at any time.
type StockLevel struct {
	VariantID       string
	WarehouseID     string
	QuantityOnHand  decimal.Decimal
	WeightedAvgCost decimal.Decimal
	UpdatedAt       time.Time
}

// ApplyMovement folds one movement into the level, returning the
// movement's effective unit cost. Outbound movements take the current
// weighted-average cost; inbound movements recompute it as a
// quantity-weighted average at CostScale, ties rounding away from
// zero.
func (s *StockLevel) ApplyMovement(quantity, inUnitCost decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsZero() {
		return decimal.Zero, ErrInvalidQuantity
	}

	if quantity.IsNegative() {
		requested := quantity.Neg()
		if s.QuantityOnHand.LessThan(requested) {
			return decimal.Zero, &InsufficientStockError{
				VariantID:   s.VariantID,
				WarehouseID: s.WarehouseID,
				Available:   s.QuantityOnHand,
				Requested:   requested,
			}
		}

		s.QuantityOnHand = s.QuantityOnHand.Sub(requested)

		return s.WeightedAvgCost, nil
	}

	newQty := s.QuantityOnHand.Add(quantity)

	if s.QuantityOnHand.IsZero() {
		s.WeightedAvgCost = inUnitCost.Round(CostScale)
	} else {
		oldValue := s.QuantityOnHand.Mul(s.WeightedAvgCost)
		inValue := quantity.Mul(inUnitCost)
		s.WeightedAvgCost = oldValue.Add(inValue).DivRound(newQty, CostScale)
	}

	s.QuantityOnHand = newQty

	return inUnitCost, nil
}

// ReplayMovements reconstructs a cell's level by folding movements in
// the order given. The caller supplies movements already ordered by
// (movement_date, seq). A fold that would drive quantity negative
// returns ErrNegativeBalanceProjected: the log itself is corrupt, since
// recording rejects such movements up front.
func ReplayMovements(variantID, warehouseID string, movements []StockMovement) (StockLevel, error) {
	level := StockLevel{VariantID: variantID, WarehouseID: warehouseID}

	for i := range movements {
		m := &movements[i]

		if _, err := level.ApplyMovement(m.Quantity, m.UnitCost); err != nil {
			if IsConsistencyError(err) {
				return StockLevel{}, ErrNegativeBalanceProjected
			}

			return StockLevel{}, err
		}

		level.UpdatedAt = m.CreatedAt
	}

	return level, nil
}
