package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
)

// StockRepository implements usecase.StockRepository. Movements are an
// append-only log; stock_levels is the maintained projection.
type StockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository creates a new StockRepository.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetLevel returns the cell's projection. A cell that never moved reads
// as zero quantity at zero cost.
func (r *StockRepository) GetLevel(ctx context.Context, variantID, warehouseID string) (*domain.StockLevel, error) {
	query := `
		SELECT variant_id, warehouse_id, quantity_on_hand, weighted_avg_cost, updated_at
		FROM stock_levels
		WHERE variant_id = $1 AND warehouse_id = $2
	`

	level, err := scanLevel(r.pool.QueryRow(ctx, query, variantID, warehouseID))
	if err == nil {
		return level, nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return emptyLevel(variantID, warehouseID), nil
	}

	return nil, err
}

// GetLevelForUpdate locks the cell's projection row, inserting a zero
// row first for cells that never moved. Every writer to a cell passes
// through this lock, so movements per cell fully serialize.
func (r *StockRepository) GetLevelForUpdate(ctx context.Context, tx usecase.Transaction, variantID, warehouseID string) (*domain.StockLevel, error) {
	pgxTx := tx.(*Tx).PgxTx()

	insert := `
		INSERT INTO stock_levels (variant_id, warehouse_id, quantity_on_hand, weighted_avg_cost, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (variant_id, warehouse_id) DO NOTHING
	`
	if _, err := pgxTx.Exec(ctx, insert, variantID, warehouseID); err != nil {
		return nil, err
	}

	query := `
		SELECT variant_id, warehouse_id, quantity_on_hand, weighted_avg_cost, updated_at
		FROM stock_levels
		WHERE variant_id = $1 AND warehouse_id = $2
		FOR UPDATE
	`

	return scanLevel(pgxTx.QueryRow(ctx, query, variantID, warehouseID))
}

// CreateMovement appends a movement and fills in its log sequence.
func (r *StockRepository) CreateMovement(ctx context.Context, tx usecase.Transaction, movement *domain.StockMovement) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		INSERT INTO stock_movements (
			id, company_id, variant_id, warehouse_id,
			quantity, type, reference, unit_cost, movement_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	return pgxTx.QueryRow(ctx, query,
		movement.ID,
		movement.CompanyID,
		movement.VariantID,
		movement.WarehouseID,
		decimalToNumeric(movement.Quantity),
		string(movement.Type),
		stringPtrToText(movement.Reference),
		decimalToNumeric(movement.UnitCost),
		timeToPgTimestamptz(movement.MovementDate),
		timeToPgTimestamptz(movement.CreatedAt),
	).Scan(&movement.Seq)
}

// UpdateLevel writes the cell's projection.
func (r *StockRepository) UpdateLevel(ctx context.Context, tx usecase.Transaction, level *domain.StockLevel) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		UPDATE stock_levels
		SET quantity_on_hand = $3, weighted_avg_cost = $4, updated_at = $5
		WHERE variant_id = $1 AND warehouse_id = $2
	`

	_, err := pgxTx.Exec(ctx, query,
		level.VariantID,
		level.WarehouseID,
		decimalToNumeric(level.QuantityOnHand),
		decimalToNumeric(level.WeightedAvgCost),
		timeToPgTimestamptz(level.UpdatedAt),
	)

	return err
}

// ListMovements returns a cell's movements in replay order.
func (r *StockRepository) ListMovements(ctx context.Context, variantID, warehouseID string) ([]domain.StockMovement, error) {
	return r.listMovements(ctx, r.pool, variantID, warehouseID)
}

// ListMovementsTx is ListMovements inside the caller's transaction, for
// replays that must see the same snapshot as the locked projection.
func (r *StockRepository) ListMovementsTx(ctx context.Context, tx usecase.Transaction, variantID, warehouseID string) ([]domain.StockMovement, error) {
	return r.listMovements(ctx, tx.(*Tx).PgxTx(), variantID, warehouseID)
}

func (r *StockRepository) listMovements(ctx context.Context, q queryer, variantID, warehouseID string) ([]domain.StockMovement, error) {
	query := `
		SELECT seq, id, company_id, variant_id, warehouse_id,
		       quantity, type, reference, unit_cost, movement_date, created_at
		FROM stock_movements
		WHERE variant_id = $1 AND warehouse_id = $2
		ORDER BY movement_date, seq
	`

	rows, err := q.Query(ctx, query, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var (
			movement     domain.StockMovement
			quantity     pgtype.Numeric
			unitCost     pgtype.Numeric
			movementType string
			reference    pgtype.Text
		)

		if err := rows.Scan(
			&movement.Seq,
			&movement.ID,
			&movement.CompanyID,
			&movement.VariantID,
			&movement.WarehouseID,
			&quantity,
			&movementType,
			&reference,
			&unitCost,
			&movement.MovementDate,
			&movement.CreatedAt,
		); err != nil {
			return nil, err
		}

		movement.Quantity = numericToDecimal(quantity)
		movement.Type = domain.MovementType(movementType)
		movement.Reference = textToStringPtr(reference)
		movement.UnitCost = numericToDecimal(unitCost)
		movements = append(movements, movement)
	}

	return movements, rows.Err()
}

// ListLevels pages through every known cell.
func (r *StockRepository) ListLevels(ctx context.Context, limit, offset int) ([]*domain.StockLevel, error) {
	query := `
		SELECT variant_id, warehouse_id, quantity_on_hand, weighted_avg_cost, updated_at
		FROM stock_levels
		ORDER BY variant_id, warehouse_id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []*domain.StockLevel
	for rows.Next() {
		level, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}

		levels = append(levels, level)
	}

	return levels, rows.Err()
}

func scanLevel(row pgx.Row) (*domain.StockLevel, error) {
	var (
		level domain.StockLevel
		qty   pgtype.Numeric
		cost  pgtype.Numeric
	)

	err := row.Scan(
		&level.VariantID,
		&level.WarehouseID,
		&qty,
		&cost,
		&level.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	level.QuantityOnHand = numericToDecimal(qty)
	level.WeightedAvgCost = numericToDecimal(cost)

	return &level, nil
}

func emptyLevel(variantID, warehouseID string) *domain.StockLevel {
	return &domain.StockLevel{
		VariantID:       variantID,
		WarehouseID:     warehouseID,
		QuantityOnHand:  decimal.Zero,
		WeightedAvgCost: decimal.Zero,
		UpdatedAt:       time.Time{},
	}
}
