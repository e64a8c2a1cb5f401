package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
)

// SagaRepository implements usecase.SagaRepository. Terminal sagas are
// written once; entry and movement IDs are stored as arrays.
type SagaRepository struct {
	pool *pgxpool.Pool
}

// NewSagaRepository creates a new SagaRepository.
func NewSagaRepository(pool *pgxpool.Pool) *SagaRepository {
	return &SagaRepository{pool: pool}
}

const sagaInsert = `
	INSERT INTO fulfillment_sagas (
		id, company_id, type, order_ref, state,
		entry_ids, movement_ids, error_message, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Create inserts a saga record outside any transaction. Used for
// aborted sagas, whose work was already rolled back.
func (r *SagaRepository) Create(ctx context.Context, saga *domain.FulfillmentSaga) error {
	_, err := r.pool.Exec(ctx, sagaInsert, sagaArgs(saga)...)

	return err
}

// CreateTx inserts a saga record inside the caller's transaction, so a
// committed saga and its ledger writes land atomically.
func (r *SagaRepository) CreateTx(ctx context.Context, tx usecase.Transaction, saga *domain.FulfillmentSaga) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, sagaInsert, sagaArgs(saga)...)

	return err
}

// GetByID retrieves a saga by ID.
func (r *SagaRepository) GetByID(ctx context.Context, id string) (*domain.FulfillmentSaga, error) {
	query := `
		SELECT id, company_id, type, order_ref, state,
		       entry_ids, movement_ids, error_message, created_at, updated_at
		FROM fulfillment_sagas
		WHERE id = $1
	`

	var (
		saga      domain.FulfillmentSaga
		sagaType  string
		sagaState string
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&saga.ID,
		&saga.CompanyID,
		&sagaType,
		&saga.OrderRef,
		&sagaState,
		&saga.EntryIDs,
		&saga.MovementIDs,
		&saga.ErrorMessage,
		&saga.CreatedAt,
		&saga.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSagaNotFound
		}

		return nil, err
	}

	saga.Type = domain.SagaType(sagaType)
	saga.State = domain.SagaState(sagaState)

	return &saga, nil
}

func sagaArgs(saga *domain.FulfillmentSaga) []any {
	return []any{
		saga.ID,
		saga.CompanyID,
		string(saga.Type),
		saga.OrderRef,
		string(saga.State),
		saga.EntryIDs,
		saga.MovementIDs,
		saga.ErrorMessage,
		timeToPgTimestamptz(saga.CreatedAt),
		timeToPgTimestamptz(saga.UpdatedAt),
	}
}
