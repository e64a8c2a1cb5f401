package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
)

// RecoveryUseCase rebuilds and verifies derived projections from the
// append-only logs. Replay is the canonical repair path: in-database
// projections are caches and are never trusted blindly across restarts.
type RecoveryUseCase struct {
	txManager   TransactionManager
	stockRepo   StockRepository
	journalRepo JournalRepository
	auditRepo   AuditRepository
	cache       Cache
	clock       Clock
}

// NewRecoveryUseCase creates a new RecoveryUseCase. cache may be nil.
func NewRecoveryUseCase(
	txManager TransactionManager,
	stockRepo StockRepository,
	journalRepo JournalRepository,
	auditRepo AuditRepository,
	cache Cache,
	clock Clock,
) *RecoveryUseCase {
	return &RecoveryUseCase{
		txManager:   txManager,
		stockRepo:   stockRepo,
		journalRepo: journalRepo,
		auditRepo:   auditRepo,
		cache:       cache,
		clock:       clock,
	}
}

// CellVerification compares a cell's maintained projection with a full
// replay of its movement log.
type CellVerification struct {
	VariantID     string
	WarehouseID   string
	Consistent    bool
	ProjectedQty  decimal.Decimal
	ProjectedCost decimal.Decimal
	ReplayedQty   decimal.Decimal
	ReplayedCost  decimal.Decimal
	CheckedAt     time.Time
}

// VerifyCell replays a cell's movements and compares the result with
// the stored projection.
func (uc *RecoveryUseCase) VerifyCell(ctx context.Context, variantID, warehouseID string) (*CellVerification, error) {
	movements, err := uc.stockRepo.ListMovements(ctx, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	replayed, err := domain.ReplayMovements(variantID, warehouseID, movements)
	if err != nil {
		return nil, err
	}

	level, err := uc.stockRepo.GetLevel(ctx, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	return &CellVerification{
		VariantID:     variantID,
		WarehouseID:   warehouseID,
		Consistent:    level.QuantityOnHand.Equal(replayed.QuantityOnHand) && level.WeightedAvgCost.Equal(replayed.WeightedAvgCost),
		ProjectedQty:  level.QuantityOnHand,
		ProjectedCost: level.WeightedAvgCost,
		ReplayedQty:   replayed.QuantityOnHand,
		ReplayedCost:  replayed.WeightedAvgCost,
		CheckedAt:     uc.clock.Now(),
	}, nil
}

// RepairCell rewrites a cell's projection from a replay of its log.
// The projection row is locked first, so writers are drained and the
// replay sees a settled snapshot.
func (uc *RecoveryUseCase) RepairCell(ctx context.Context, variantID, warehouseID string) (*CellVerification, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	level, err := uc.stockRepo.GetLevelForUpdate(ctx, tx, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	movements, err := uc.stockRepo.ListMovementsTx(ctx, tx, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	replayed, err := domain.ReplayMovements(variantID, warehouseID, movements)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	result := &CellVerification{
		VariantID:     variantID,
		WarehouseID:   warehouseID,
		Consistent:    level.QuantityOnHand.Equal(replayed.QuantityOnHand) && level.WeightedAvgCost.Equal(replayed.WeightedAvgCost),
		ProjectedQty:  level.QuantityOnHand,
		ProjectedCost: level.WeightedAvgCost,
		ReplayedQty:   replayed.QuantityOnHand,
		ReplayedCost:  replayed.WeightedAvgCost,
		CheckedAt:     now,
	}

	if result.Consistent {
		return result, nil
	}

	replayed.UpdatedAt = now
	if err := uc.stockRepo.UpdateLevel(ctx, tx, &replayed); err != nil {
		return nil, err
	}

	audit := &domain.AuditLog{
		Action:       string(domain.AuditActionCellRepair),
		ResourceType: domain.AggregateTypeStockMovement,
		ResourceID:   variantID + ":" + warehouseID,
		BeforeState:  domain.MarshalState(level),
		AfterState:   domain.MarshalState(&replayed),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, balanceCacheKey(variantID, warehouseID))
	}

	return result, nil
}

// VerifyAllCells verifies every known cell, returning the inconsistent
// ones.
func (uc *RecoveryUseCase) VerifyAllCells(ctx context.Context) ([]*CellVerification, error) {
	const page = 500

	var drifted []*CellVerification

	for offset := 0; ; offset += page {
		levels, err := uc.stockRepo.ListLevels(ctx, page, offset)
		if err != nil {
			return nil, err
		}

		for _, level := range levels {
			result, err := uc.VerifyCell(ctx, level.VariantID, level.WarehouseID)
			if err != nil {
				return nil, err
			}

			if !result.Consistent {
				drifted = append(drifted, result)
			}
		}

		if len(levels) < page {
			break
		}
	}

	return drifted, nil
}

// CheckJournalConsistency verifies that base-currency debits equal
// credits across all posted entries of a company.
func (uc *RecoveryUseCase) CheckJournalConsistency(ctx context.Context, companyID string) error {
	net, err := uc.journalRepo.SumPostedNet(ctx, companyID)
	if err != nil {
		return err
	}

	if !net.IsZero() {
		return &domain.UnbalancedError{Delta: net}
	}

	return nil
}
