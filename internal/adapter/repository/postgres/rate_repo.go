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
)

// RateRepository implements usecase.RateRepository.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository creates a new RateRepository.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// GetRate returns the most recent stored rate for the pair at or before
// asOf.
func (r *RateRepository) GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	query := `
		SELECT rate
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND as_of <= $3
		ORDER BY as_of DESC
		LIMIT 1
	`

	var rate pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, from, to, timeToPgTimestamptz(asOf)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrRateNotFound
		}

		return decimal.Zero, err
	}

	return numericToDecimal(rate), nil
}

// SaveRate stores a rate observation for a currency pair.
func (r *RateRepository) SaveRate(ctx context.Context, rate *domain.ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (id, from_currency, to_currency, rate, as_of)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		rate.ID,
		rate.From,
		rate.To,
		decimalToNumeric(rate.Rate),
		timeToPgTimestamptz(rate.AsOf),
	)

	return err
}
