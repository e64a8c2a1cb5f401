package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
)

// AccountRepository defines data access for the chart of accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	UpdateType(ctx context.Context, tx Transaction, id string, accountType domain.AccountType, updatedAt time.Time) error
	HasPostings(ctx context.Context, tx Transaction, id string) (bool, error)
	List(ctx context.Context, companyID string, limit, offset int) ([]*domain.Account, error)
}

// CompanyRepository resolves reference data owned by the external
// catalog.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
}

// RateRepository defines data access for exchange rates.
type RateRepository interface {
	// GetRate returns the most recent rate for the pair at or before
	// asOf, or domain.ErrRateNotFound.
	GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// JournalRepository defines data access for journal entries and lines.
// Entry and line tables are append-only; only the reversed flag is ever
// updated after creation.
type JournalRepository interface {
	// NextSequence returns the next per-company sequence number. The
	// underlying row lock serializes concurrent postings per company.
	NextSequence(ctx context.Context, tx Transaction, companyID string) (int64, error)
	CreateEntry(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.JournalEntry, error)
	MarkReversed(ctx context.Context, tx Transaction, id string) error
	// ListLinesByAccount returns posted lines for an account ordered by
	// the per-company entry sequence.
	ListLinesByAccount(ctx context.Context, accountID string, from, to *time.Time, limit, offset int) ([]domain.LedgerLine, error)
	// SumPostedNet sums base-currency debit minus credit over all
	// posted lines of a company.
	SumPostedNet(ctx context.Context, companyID string) (decimal.Decimal, error)
}

// StockRepository defines data access for the stock movement log and
// the per-cell level projection.
type StockRepository interface {
	GetLevel(ctx context.Context, variantID, warehouseID string) (*domain.StockLevel, error)
	// GetLevelForUpdate locks the cell's projection row, creating a
	// zero row first if the cell has never moved.
	GetLevelForUpdate(ctx context.Context, tx Transaction, variantID, warehouseID string) (*domain.StockLevel, error)
	CreateMovement(ctx context.Context, tx Transaction, movement *domain.StockMovement) error
	UpdateLevel(ctx context.Context, tx Transaction, level *domain.StockLevel) error
	// ListMovements returns a cell's movements ordered by
	// (movement_date, seq).
	ListMovements(ctx context.Context, variantID, warehouseID string) ([]domain.StockMovement, error)
	ListMovementsTx(ctx context.Context, tx Transaction, variantID, warehouseID string) ([]domain.StockMovement, error)
	ListLevels(ctx context.Context, limit, offset int) ([]*domain.StockLevel, error)
}

// SagaRepository defines data access for fulfillment sagas.
type SagaRepository interface {
	Create(ctx context.Context, saga *domain.FulfillmentSaga) error
	CreateTx(ctx context.Context, tx Transaction, saga *domain.FulfillmentSaga) error
	GetByID(ctx context.Context, id string) (*domain.FulfillmentSaga, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Retrier retries an operation on transient infrastructure failures
// with bounded backoff. Business rejections pass through untouched.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations for derived projections. Cached
// values are advisory; the store is authoritative.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder receives operational counters from the use cases.
type MetricsRecorder interface {
	EntryPosted(companyID string)
	EntryReversed(companyID string)
	EntryRejected(reason string)
	MovementRecorded(movementType string)
	MovementRejected(reason string)
	SagaFinished(sagaType, outcome string)
}
