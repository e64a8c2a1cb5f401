package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
)

// FulfillmentUseCase translates order events into synchronized stock
// movements and journal postings. Each operation is a saga executed in
// one database transaction: the stock ledger and the journal can never
// diverge, and partial application is never observable.
type FulfillmentUseCase struct {
	txManager   TransactionManager
	companyRepo CompanyRepository
	sagaRepo    SagaRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	journal     *JournalUseCase
	stock       *StockUseCase
	idGen       IDGenerator
	clock       Clock
	retrier     Retrier
	metrics     MetricsRecorder
}

// NewFulfillmentUseCase creates a new FulfillmentUseCase.
func NewFulfillmentUseCase(
	txManager TransactionManager,
	companyRepo CompanyRepository,
	sagaRepo SagaRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	journal *JournalUseCase,
	stock *StockUseCase,
	idGen IDGenerator,
	clock Clock,
	retrier Retrier,
	metrics MetricsRecorder,
) *FulfillmentUseCase {
	return &FulfillmentUseCase{
		txManager:   txManager,
		companyRepo: companyRepo,
		sagaRepo:    sagaRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		journal:     journal,
		stock:       stock,
		idGen:       idGen,
		clock:       clock,
		retrier:     retrier,
		metrics:     metrics,
	}
}

// SalesOrderLine is one fulfilled order line.
type SalesOrderLine struct {
	VariantID   string
	WarehouseID string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// FulfillSalesOrderInput describes a sales-order fulfillment.
type FulfillSalesOrderInput struct {
	CompanyID           string
	OrderRef            string
	Date                time.Time
	Lines               []SalesOrderLine
	CogsAccountID       string
	InventoryAccountID  string
	RevenueAccountID    string
	ReceivableAccountID string
}

// FulfillSalesOrder atomically records one outbound movement per line,
// posts a cost entry (debit COGS / credit Inventory at moved cost) and
// a revenue entry (debit Receivable / credit Revenue). If any step
// fails nothing is recorded and the order stays pending.
func (uc *FulfillmentUseCase) FulfillSalesOrder(ctx context.Context, input FulfillSalesOrderInput) (*domain.FulfillmentSaga, error) {
	if len(input.Lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	for i := range input.Lines {
		if !input.Lines[i].Quantity.IsPositive() {
			return nil, domain.ErrInvalidOrderQuantity
		}
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	company, err := uc.companyRepo.GetByID(ctx, input.CompanyID)
	if err != nil {
		return nil, err
	}
	baseExponent := domain.CurrencyExponent(company.BaseCurrency)

	now := uc.clock.Now()
	saga := domain.NewFulfillmentSaga(uc.idGen.Generate(), input.CompanyID, domain.SagaTypeSalesFulfillment, input.OrderRef, now)

	err = uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		// A retried attempt starts the state machine over.
		saga.State = domain.SagaStatePending
		saga.MovementIDs = nil
		saga.EntryIDs = nil

		totalCost := decimal.Zero
		totalRevenue := decimal.Zero

		for i := range input.Lines {
			line := input.Lines[i]

			movement, err := uc.stock.recordInTx(ctx, tx, RecordMovementInput{
				CompanyID:    input.CompanyID,
				VariantID:    line.VariantID,
				WarehouseID:  line.WarehouseID,
				Quantity:     line.Quantity.Neg(),
				Type:         domain.MovementTypeOut,
				Reference:    &input.OrderRef,
				MovementDate: input.Date,
			})
			if err != nil {
				return err
			}

			saga.MovementIDs = append(saga.MovementIDs, movement.ID)
			totalCost = totalCost.Add(movement.UnitCost.Mul(line.Quantity))
			totalRevenue = totalRevenue.Add(line.UnitPrice.Mul(line.Quantity))
		}

		if err := saga.Transition(domain.SagaStateStockApplied, uc.clock.Now()); err != nil {
			return err
		}

		totalCost = totalCost.RoundBank(baseExponent)
		totalRevenue = totalRevenue.RoundBank(baseExponent)

		if totalCost.IsPositive() {
			cogs, err := uc.journal.postInTx(ctx, tx, PostEntryInput{
				CompanyID: input.CompanyID,
				Date:      input.Date,
				Lines: []EntryLineInput{
					{AccountID: input.CogsAccountID, Debit: totalCost},
					{AccountID: input.InventoryAccountID, Credit: totalCost},
				},
			})
			if err != nil {
				return err
			}

			saga.EntryIDs = append(saga.EntryIDs, cogs.ID)
		}

		if totalRevenue.IsPositive() {
			revenue, err := uc.journal.postInTx(ctx, tx, PostEntryInput{
				CompanyID: input.CompanyID,
				Date:      input.Date,
				Lines: []EntryLineInput{
					{AccountID: input.ReceivableAccountID, Debit: totalRevenue},
					{AccountID: input.RevenueAccountID, Credit: totalRevenue},
				},
			})
			if err != nil {
				return err
			}

			saga.EntryIDs = append(saga.EntryIDs, revenue.ID)
		}

		if err := saga.Transition(domain.SagaStateJournalApplied, uc.clock.Now()); err != nil {
			return err
		}

		return uc.commitSaga(ctx, tx, saga)
	})
	if err != nil {
		uc.abortSaga(ctx, saga, err)
		return nil, err
	}

	for i := range input.Lines {
		uc.stock.invalidateCell(ctx, input.Lines[i].VariantID, input.Lines[i].WarehouseID)
	}
	uc.metrics.SagaFinished(string(saga.Type), string(saga.State))

	return saga, nil
}

// PurchaseOrderLine is one received order line.
type PurchaseOrderLine struct {
	VariantID   string
	WarehouseID string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
}

// ReceivePurchaseOrderInput describes a purchase-order receipt.
type ReceivePurchaseOrderInput struct {
	CompanyID          string
	OrderRef           string
	Date               time.Time
	Lines              []PurchaseOrderLine
	InventoryAccountID string
	PayableAccountID   string
}

// ReceivePurchaseOrder is the inbound mirror of FulfillSalesOrder: one
// inbound movement per line plus a debit Inventory / credit Payable
// entry for the received cost.
func (uc *FulfillmentUseCase) ReceivePurchaseOrder(ctx context.Context, input ReceivePurchaseOrderInput) (*domain.FulfillmentSaga, error) {
	if len(input.Lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	for i := range input.Lines {
		if !input.Lines[i].Quantity.IsPositive() {
			return nil, domain.ErrInvalidOrderQuantity
		}

		if input.Lines[i].UnitCost.IsNegative() {
			return nil, domain.ErrUnitCostRequired
		}
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	company, err := uc.companyRepo.GetByID(ctx, input.CompanyID)
	if err != nil {
		return nil, err
	}
	baseExponent := domain.CurrencyExponent(company.BaseCurrency)

	now := uc.clock.Now()
	saga := domain.NewFulfillmentSaga(uc.idGen.Generate(), input.CompanyID, domain.SagaTypePurchaseReceipt, input.OrderRef, now)

	err = uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		// A retried attempt starts the state machine over.
		saga.State = domain.SagaStatePending
		saga.MovementIDs = nil
		saga.EntryIDs = nil

		totalCost := decimal.Zero

		for i := range input.Lines {
			line := input.Lines[i]
			unitCost := line.UnitCost

			movement, err := uc.stock.recordInTx(ctx, tx, RecordMovementInput{
				CompanyID:    input.CompanyID,
				VariantID:    line.VariantID,
				WarehouseID:  line.WarehouseID,
				Quantity:     line.Quantity,
				Type:         domain.MovementTypeIn,
				UnitCost:     &unitCost,
				Reference:    &input.OrderRef,
				MovementDate: input.Date,
			})
			if err != nil {
				return err
			}

			saga.MovementIDs = append(saga.MovementIDs, movement.ID)
			totalCost = totalCost.Add(line.UnitCost.Mul(line.Quantity))
		}

		if err := saga.Transition(domain.SagaStateStockApplied, uc.clock.Now()); err != nil {
			return err
		}

		totalCost = totalCost.RoundBank(baseExponent)

		if totalCost.IsPositive() {
			entry, err := uc.journal.postInTx(ctx, tx, PostEntryInput{
				CompanyID: input.CompanyID,
				Date:      input.Date,
				Lines: []EntryLineInput{
					{AccountID: input.InventoryAccountID, Debit: totalCost},
					{AccountID: input.PayableAccountID, Credit: totalCost},
				},
			})
			if err != nil {
				return err
			}

			saga.EntryIDs = append(saga.EntryIDs, entry.ID)
		}

		if err := saga.Transition(domain.SagaStateJournalApplied, uc.clock.Now()); err != nil {
			return err
		}

		return uc.commitSaga(ctx, tx, saga)
	})
	if err != nil {
		uc.abortSaga(ctx, saga, err)
		return nil, err
	}

	for i := range input.Lines {
		uc.stock.invalidateCell(ctx, input.Lines[i].VariantID, input.Lines[i].WarehouseID)
	}
	uc.metrics.SagaFinished(string(saga.Type), string(saga.State))

	return saga, nil
}

// GetSaga retrieves a saga record.
func (uc *FulfillmentUseCase) GetSaga(ctx context.Context, id string) (*domain.FulfillmentSaga, error) {
	return uc.sagaRepo.GetByID(ctx, id)
}

// commitSaga moves the saga to committed, persists it and the outbox
// event in the transaction, and commits.
func (uc *FulfillmentUseCase) commitSaga(ctx context.Context, tx Transaction, saga *domain.FulfillmentSaga) error {
	now := uc.clock.Now()

	if err := saga.Transition(domain.SagaStateCommitted, now); err != nil {
		return err
	}

	if err := uc.sagaRepo.CreateTx(ctx, tx, saga); err != nil {
		return err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   saga.ID,
		AggregateType: domain.AggregateTypeSaga,
		EventType:     domain.EventTypeSagaCommitted,
		Payload: domain.MarshalState(domain.SagaCommittedEvent{
			SagaID:   saga.ID,
			SagaType: string(saga.Type),
			OrderRef: saga.OrderRef,
		}),
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	audit := &domain.AuditLog{
		Action:       string(sagaAuditAction(saga.Type)),
		ResourceType: domain.AggregateTypeSaga,
		ResourceID:   saga.ID,
		AfterState:   domain.MarshalState(saga),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// abortSaga records the failed saga after the transaction rolled back.
// Best effort: the rollback already guarantees consistency, the saga
// row and audit row only preserve the failure.
func (uc *FulfillmentUseCase) abortSaga(ctx context.Context, saga *domain.FulfillmentSaga, cause error) {
	now := uc.clock.Now()
	saga.Fail(cause, now)
	saga.MovementIDs = nil
	saga.EntryIDs = nil

	_ = uc.sagaRepo.Create(ctx, saga)

	_ = uc.auditRepo.Create(ctx, &domain.AuditLog{
		Action:       string(sagaAuditAction(saga.Type)),
		ResourceType: domain.AggregateTypeSaga,
		ResourceID:   saga.ID,
		AfterState:   domain.MarshalState(saga),
		Status:       string(domain.AuditStatusFailure),
		ErrorMessage: cause.Error(),
		CreatedAt:    now,
	})

	uc.metrics.SagaFinished(string(saga.Type), string(saga.State))
}

func sagaAuditAction(t domain.SagaType) domain.AuditAction {
	if t == domain.SagaTypePurchaseReceipt {
		return domain.AuditActionSagaReceive
	}

	return domain.AuditActionSagaFulfill
}
