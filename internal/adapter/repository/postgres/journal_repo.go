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

// JournalRepository implements usecase.JournalRepository. Entries and
// lines are append-only; only the reversed flag is updated in place.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextSequence advances and returns the per-company sequence counter.
// The upsert locks the counter row, serializing concurrent postings for
// one company while leaving other companies untouched.
func (r *JournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, companyID string) (int64, error) {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		INSERT INTO journal_sequences (company_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (company_id)
		DO UPDATE SET last_seq = journal_sequences.last_seq + 1
		RETURNING last_seq
	`

	var seq int64
	if err := pgxTx.QueryRow(ctx, query, companyID).Scan(&seq); err != nil {
		return 0, err
	}

	return seq, nil
}

// CreateEntry inserts an entry and its lines.
func (r *JournalRepository) CreateEntry(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	entryQuery := `
		INSERT INTO journal_entries (
			id, company_id, seq, entry_date, currency, rate,
			posted, reversed, reversal_of_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := pgxTx.Exec(ctx, entryQuery,
		entry.ID,
		entry.CompanyID,
		entry.Seq,
		timeToPgTimestamptz(entry.Date),
		stringPtrToText(entry.Currency),
		decimalPtrToNumeric(entry.Rate),
		entry.Posted,
		entry.Reversed,
		stringPtrToText(entry.ReversalOfID),
		timeToPgTimestamptz(entry.CreatedAt),
	)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO journal_lines (
			id, entry_id, account_id, partner_id,
			debit, credit, base_debit, base_credit, currency_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		batch.Queue(lineQuery,
			line.ID,
			line.EntryID,
			line.AccountID,
			stringPtrToText(line.PartnerID),
			decimalToNumeric(line.Debit),
			decimalToNumeric(line.Credit),
			decimalToNumeric(line.BaseDebit),
			decimalToNumeric(line.BaseCredit),
			decimalPtrToNumeric(line.CurrencyAmount),
		)
	}

	return pgxTx.SendBatch(ctx, batch).Close()
}

// GetByID retrieves an entry with its lines.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	entry, err := r.scanEntry(ctx, r.pool, id, false)
	if err != nil {
		return nil, err
	}

	entry.Lines, err = r.loadLines(ctx, r.pool, id)

	return entry, err
}

// GetByIDForUpdate retrieves an entry with a FOR UPDATE lock, so two
// concurrent reversals of one entry serialize.
func (r *JournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()

	entry, err := r.scanEntry(ctx, pgxTx, id, true)
	if err != nil {
		return nil, err
	}

	entry.Lines, err = r.loadLines(ctx, pgxTx, id)

	return entry, err
}

// MarkReversed flags an entry as reversed.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `UPDATE journal_entries SET reversed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// ListLinesByAccount returns posted lines for an account in entry
// sequence order, amounts in base currency.
func (r *JournalRepository) ListLinesByAccount(ctx context.Context, accountID string, from, to *time.Time, limit, offset int) ([]domain.LedgerLine, error) {
	query := `
		SELECT e.id, e.seq, e.entry_date, l.account_id, l.partner_id,
		       l.base_debit, l.base_credit, e.reversed
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = $1
		  AND e.posted
		  AND ($2::timestamptz IS NULL OR e.entry_date >= $2)
		  AND ($3::timestamptz IS NULL OR e.entry_date <= $3)
		ORDER BY e.seq
		LIMIT $4 OFFSET $5
	`

	rows, err := r.pool.Query(ctx, query, accountID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.LedgerLine
	for rows.Next() {
		var (
			line          domain.LedgerLine
			partnerID     pgtype.Text
			debit, credit pgtype.Numeric
		)

		if err := rows.Scan(
			&line.EntryID,
			&line.Seq,
			&line.Date,
			&line.AccountID,
			&partnerID,
			&debit,
			&credit,
			&line.Reversed,
		); err != nil {
			return nil, err
		}

		line.PartnerID = textToStringPtr(partnerID)
		line.Debit = numericToDecimal(debit)
		line.Credit = numericToDecimal(credit)
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// SumPostedNet sums base debit minus base credit over every posted line
// of a company. A healthy journal sums to exactly zero.
func (r *JournalRepository) SumPostedNet(ctx context.Context, companyID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(l.base_debit - l.base_credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.company_id = $1 AND e.posted
	`

	var net pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, companyID).Scan(&net); err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(net), nil
}

func (r *JournalRepository) scanEntry(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.JournalEntry, error) {
	query := `
		SELECT id, company_id, seq, entry_date, currency, rate,
		       posted, reversed, reversal_of_id, created_at
		FROM journal_entries
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		entry    domain.JournalEntry
		currency pgtype.Text
		rate     pgtype.Numeric
		parentID pgtype.Text
	)

	err := q.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.CompanyID,
		&entry.Seq,
		&entry.Date,
		&currency,
		&rate,
		&entry.Posted,
		&entry.Reversed,
		&parentID,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	entry.Currency = textToStringPtr(currency)
	entry.Rate = numericToDecimalPtr(rate)
	entry.ReversalOfID = textToStringPtr(parentID)

	return &entry, nil
}

func (r *JournalRepository) loadLines(ctx context.Context, q queryer, entryID string) ([]domain.JournalLine, error) {
	query := `
		SELECT id, entry_id, account_id, partner_id,
		       debit, credit, base_debit, base_credit, currency_amount
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.JournalLine
	for rows.Next() {
		var (
			line           domain.JournalLine
			partnerID      pgtype.Text
			debit, credit  pgtype.Numeric
			baseD, baseC   pgtype.Numeric
			currencyAmount pgtype.Numeric
		)

		if err := rows.Scan(
			&line.ID,
			&line.EntryID,
			&line.AccountID,
			&partnerID,
			&debit,
			&credit,
			&baseD,
			&baseC,
			&currencyAmount,
		); err != nil {
			return nil, err
		}

		line.PartnerID = textToStringPtr(partnerID)
		line.Debit = numericToDecimal(debit)
		line.Credit = numericToDecimal(credit)
		line.BaseDebit = numericToDecimal(baseD)
		line.BaseCredit = numericToDecimal(baseC)
		line.CurrencyAmount = numericToDecimalPtr(currencyAmount)
		lines = append(lines, line)
	}

	return lines, rows.Err()
}
