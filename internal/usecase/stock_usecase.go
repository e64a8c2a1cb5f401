package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
)

// StockUseCase maintains the append-only stock movement log and the
// per-cell quantity/weighted-average-cost projection.
type StockUseCase struct {
	txManager  TransactionManager
	stockRepo  StockRepository
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	cache      Cache
	idGen      IDGenerator
	clock      Clock
	retrier    Retrier
	metrics    MetricsRecorder
}

// NewStockUseCase creates a new StockUseCase. cache may be nil.
func NewStockUseCase(
	txManager TransactionManager,
	stockRepo StockRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	cache Cache,
	idGen IDGenerator,
	clock Clock,
	retrier Retrier,
	metrics MetricsRecorder,
) *StockUseCase {
	return &StockUseCase{
		txManager:  txManager,
		stockRepo:  stockRepo,
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		cache:      cache,
		idGen:      idGen,
		clock:      clock,
		retrier:    retrier,
		metrics:    metrics,
	}
}

// RecordMovementInput is a draft stock movement. Quantity is signed:
// positive inbound, negative outbound. UnitCost is required inbound and
// must be absent outbound; outbound cost always comes from the cell's
// weighted-average cost.
type RecordMovementInput struct {
	CompanyID    string
	VariantID    string
	WarehouseID  string
	Quantity     decimal.Decimal
	Type         domain.MovementType
	UnitCost     *decimal.Decimal
	Reference    *string
	MovementDate time.Time
}

func (in *RecordMovementInput) validate() error {
	if in.Quantity.IsZero() {
		return domain.ErrInvalidQuantity
	}

	if !in.Type.Valid() {
		return domain.ErrInvalidQuantity
	}

	if in.Quantity.IsPositive() {
		if in.UnitCost == nil || in.UnitCost.IsNegative() {
			return domain.ErrUnitCostRequired
		}

		return nil
	}

	if in.UnitCost != nil {
		return domain.ErrUnitCostNotAllowed
	}

	return nil
}

// RecordMovement appends a movement to the log and updates the cell
// projection in the same transaction. The projection row is locked, so
// concurrent movements against one cell serialize and the
// insufficient-stock check always sees a consistent snapshot.
func (uc *StockUseCase) RecordMovement(ctx context.Context, input RecordMovementInput) (*domain.StockMovement, error) {
	if err := input.validate(); err != nil {
		uc.metrics.MovementRejected(rejectionReason(err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var movement *domain.StockMovement

	err := uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		recorded, err := uc.recordInTx(ctx, tx, input)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		movement = recorded

		return nil
	})
	if err != nil {
		uc.metrics.MovementRejected(rejectionReason(err))
		return nil, err
	}

	uc.invalidateCell(ctx, input.VariantID, input.WarehouseID)
	uc.metrics.MovementRecorded(string(input.Type))

	return movement, nil
}

// recordInTx applies one movement inside the caller's transaction.
// Shared with the fulfillment saga. Input must already be validated.
func (uc *StockUseCase) recordInTx(ctx context.Context, tx Transaction, input RecordMovementInput) (*domain.StockMovement, error) {
	level, err := uc.stockRepo.GetLevelForUpdate(ctx, tx, input.VariantID, input.WarehouseID)
	if err != nil {
		return nil, err
	}

	inCost := decimal.Zero
	if input.UnitCost != nil {
		inCost = *input.UnitCost
	}

	unitCost, err := level.ApplyMovement(input.Quantity, inCost)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()

	movementDate := input.MovementDate
	if movementDate.IsZero() {
		movementDate = now
	}

	movement := &domain.StockMovement{
		ID:           uc.idGen.Generate(),
		CompanyID:    input.CompanyID,
		VariantID:    input.VariantID,
		WarehouseID:  input.WarehouseID,
		Quantity:     input.Quantity,
		Type:         input.Type,
		Reference:    input.Reference,
		UnitCost:     unitCost,
		MovementDate: movementDate,
		CreatedAt:    now,
	}

	if err := uc.stockRepo.CreateMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	level.UpdatedAt = now
	if err := uc.stockRepo.UpdateLevel(ctx, tx, level); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   movement.ID,
		AggregateType: domain.AggregateTypeStockMovement,
		EventType:     domain.EventTypeMovementRecorded,
		Payload: domain.MarshalState(domain.MovementRecordedEvent{
			MovementID:  movement.ID,
			CompanyID:   movement.CompanyID,
			VariantID:   movement.VariantID,
			WarehouseID: movement.WarehouseID,
			Quantity:    movement.Quantity.String(),
			UnitCost:    movement.UnitCost.String(),
			Type:        string(movement.Type),
		}),
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	audit := &domain.AuditLog{
		Action:       string(domain.AuditActionMovementRecord),
		ResourceType: domain.AggregateTypeStockMovement,
		ResourceID:   movement.ID,
		AfterState:   domain.MarshalState(movement),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return nil, err
	}

	return movement, nil
}

// CurrentBalance returns the cell's projected quantity and weighted
// average cost, read through the cache when one is configured.
func (uc *StockUseCase) CurrentBalance(ctx context.Context, variantID, warehouseID string) (*domain.StockLevel, error) {
	key := balanceCacheKey(variantID, warehouseID)

	if uc.cache != nil {
		if data, err := uc.cache.Get(ctx, key); err == nil && len(data) > 0 {
			var level domain.StockLevel
			if err := json.Unmarshal(data, &level); err == nil {
				return &level, nil
			}
		}
	}

	level, err := uc.stockRepo.GetLevel(ctx, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(level); err == nil {
			_ = uc.cache.Set(ctx, key, data, BalanceCacheTTL)
		}
	}

	return level, nil
}

// MovementHistory returns a cell's movements in replay order.
func (uc *StockUseCase) MovementHistory(ctx context.Context, variantID, warehouseID string) ([]domain.StockMovement, error) {
	return uc.stockRepo.ListMovements(ctx, variantID, warehouseID)
}

// invalidateCell drops the cached projection. Best effort: a stale
// cache entry expires on its own and the store stays authoritative.
func (uc *StockUseCase) invalidateCell(ctx context.Context, variantID, warehouseID string) {
	if uc.cache == nil {
		return
	}

	_ = uc.cache.Delete(ctx, balanceCacheKey(variantID, warehouseID))
}

func balanceCacheKey(variantID, warehouseID string) string {
	return "stock:" + variantID + ":" + warehouseID
}
