package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
)

// MockTransaction records commit/rollback calls.
type MockTransaction struct {
	Committed  bool
	RolledBack bool

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}
	t.Committed = true
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if t.RollbackFunc != nil {
		return t.RollbackFunc(ctx)
	}
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTransactionManager hands out MockTransactions and keeps them for
// later inspection.
type MockTransactionManager struct {
	mu           sync.Mutex
	Transactions []*MockTransaction

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &MockTransaction{}
	m.Transactions = append(m.Transactions, tx)
	return tx, nil
}

// LastCommitted reports whether the most recent transaction committed.
func (m *MockTransactionManager) LastCommitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Transactions) == 0 {
		return false
	}
	return m.Transactions[len(m.Transactions)-1].Committed
}

// MockIDGenerator returns sequential IDs.
type MockIDGenerator struct {
	mu   sync.Mutex
	next int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return fmt.Sprintf("id-%03d", m.next)
}

// MockClock returns a fixed time.
type MockClock struct {
	Time time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{Time: t}
}

func (m *MockClock) Now() time.Time {
	return m.Time
}

// MockAccountRepository is an in-memory AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	posted   map[string]bool

	CreateFunc            func(ctx context.Context, account *domain.Account) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	HasPostingsFunc       func(ctx context.Context, tx usecase.Transaction, id string) (bool, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
		posted:   make(map[string]bool),
	}
}

// Seed adds an account directly.
func (m *MockAccountRepository) Seed(accounts ...*domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
}

// MarkPosted makes HasPostings return true for the account.
func (m *MockAccountRepository) MarkPosted(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted[id] = true
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.CompanyID == account.CompanyID && existing.Code == account.Code {
			return domain.ErrDuplicateCode
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.CompanyID == companyID && a.Code == code {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			copied := *a
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Active = active
	a.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) UpdateType(ctx context.Context, tx usecase.Transaction, id string, accountType domain.AccountType, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Type = accountType
	a.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) HasPostings(ctx context.Context, tx usecase.Transaction, id string) (bool, error) {
	if m.HasPostingsFunc != nil {
		return m.HasPostingsFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.posted[id], nil
}

func (m *MockAccountRepository) List(ctx context.Context, companyID string, limit, offset int) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, a := range m.accounts {
		if a.CompanyID == companyID {
			copied := *a
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// MockCompanyRepository is an in-memory CompanyRepository.
type MockCompanyRepository struct {
	mu        sync.RWMutex
	companies map[string]*domain.Company

	GetByIDFunc func(ctx context.Context, id string) (*domain.Company, error)
}

func NewMockCompanyRepository() *MockCompanyRepository {
	return &MockCompanyRepository{companies: make(map[string]*domain.Company)}
}

func (m *MockCompanyRepository) Seed(companies ...*domain.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range companies {
		m.companies[c.ID] = c
	}
}

func (m *MockCompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.companies[id]; ok {
		return c, nil
	}
	return nil, domain.ErrCompanyNotFound
}

// MockRateRepository is an in-memory RateRepository keyed by pair.
type MockRateRepository struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal

	GetRateFunc func(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}

func NewMockRateRepository() *MockRateRepository {
	return &MockRateRepository{rates: make(map[string]decimal.Decimal)}
}

func (m *MockRateRepository) SeedRate(from, to string, rate decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[from+"/"+to] = rate
}

func (m *MockRateRepository) GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if m.GetRateFunc != nil {
		return m.GetRateFunc(ctx, from, to, asOf)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rate, ok := m.rates[from+"/"+to]; ok {
		return rate, nil
	}
	return decimal.Zero, domain.ErrRateNotFound
}

// MockJournalRepository is an in-memory JournalRepository.
type MockJournalRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.JournalEntry
	seqs    map[string]int64

	NextSequenceFunc func(ctx context.Context, tx usecase.Transaction, companyID string) (int64, error)
	CreateEntryFunc  func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
}

func NewMockJournalRepository() *MockJournalRepository {
	return &MockJournalRepository{
		entries: make(map[string]*domain.JournalEntry),
		seqs:    make(map[string]int64),
	}
}

func (m *MockJournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, companyID string) (int64, error) {
	if m.NextSequenceFunc != nil {
		return m.NextSequenceFunc(ctx, tx, companyID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[companyID]++
	return m.seqs[companyID], nil
}

func (m *MockJournalRepository) CreateEntry(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateEntryFunc != nil {
		return m.CreateEntryFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockJournalRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MockJournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	return m.GetByID(ctx, id)
}

func (m *MockJournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.Reversed = true
	return nil
}

func (m *MockJournalRepository) ListLinesByAccount(ctx context.Context, accountID string, from, to *time.Time, limit, offset int) ([]domain.LedgerLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lines []domain.LedgerLine
	for _, e := range m.entries {
		if !e.Posted {
			continue
		}
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		for i := range e.Lines {
			if e.Lines[i].AccountID != accountID {
				continue
			}
			lines = append(lines, domain.LedgerLine{
				EntryID:   e.ID,
				Seq:       e.Seq,
				Date:      e.Date,
				AccountID: accountID,
				PartnerID: e.Lines[i].PartnerID,
				Debit:     e.Lines[i].BaseDebit,
				Credit:    e.Lines[i].BaseCredit,
				Reversed:  e.Reversed,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })

	if offset > len(lines) {
		return nil, nil
	}
	lines = lines[offset:]
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines, nil
}

func (m *MockJournalRepository) SumPostedNet(ctx context.Context, companyID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if !e.Posted || e.CompanyID != companyID {
			continue
		}
		sum = sum.Add(e.Imbalance())
	}
	return sum, nil
}

// EntryCount returns the number of stored entries.
func (m *MockJournalRepository) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MockStockRepository is an in-memory StockRepository.
type MockStockRepository struct {
	mu        sync.RWMutex
	levels    map[string]*domain.StockLevel
	movements []domain.StockMovement
	nextSeq   int64

	GetLevelForUpdateFunc func(ctx context.Context, tx usecase.Transaction, variantID, warehouseID string) (*domain.StockLevel, error)
	CreateMovementFunc    func(ctx context.Context, tx usecase.Transaction, movement *domain.StockMovement) error
	UpdateLevelFunc       func(ctx context.Context, tx usecase.Transaction, level *domain.StockLevel) error
}

func NewMockStockRepository() *MockStockRepository {
	return &MockStockRepository{levels: make(map[string]*domain.StockLevel)}
}

func cellKey(variantID, warehouseID string) string {
	return variantID + "|" + warehouseID
}

func (m *MockStockRepository) GetLevel(ctx context.Context, variantID, warehouseID string) (*domain.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if level, ok := m.levels[cellKey(variantID, warehouseID)]; ok {
		copied := *level
		return &copied, nil
	}
	return &domain.StockLevel{
		VariantID:       variantID,
		WarehouseID:     warehouseID,
		QuantityOnHand:  decimal.Zero,
		WeightedAvgCost: decimal.Zero,
	}, nil
}

func (m *MockStockRepository) GetLevelForUpdate(ctx context.Context, tx usecase.Transaction, variantID, warehouseID string) (*domain.StockLevel, error) {
	if m.GetLevelForUpdateFunc != nil {
		return m.GetLevelForUpdateFunc(ctx, tx, variantID, warehouseID)
	}
	return m.GetLevel(ctx, variantID, warehouseID)
}

func (m *MockStockRepository) CreateMovement(ctx context.Context, tx usecase.Transaction, movement *domain.StockMovement) error {
	if m.CreateMovementFunc != nil {
		return m.CreateMovementFunc(ctx, tx, movement)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	movement.Seq = m.nextSeq
	m.movements = append(m.movements, *movement)
	return nil
}

func (m *MockStockRepository) UpdateLevel(ctx context.Context, tx usecase.Transaction, level *domain.StockLevel) error {
	if m.UpdateLevelFunc != nil {
		return m.UpdateLevelFunc(ctx, tx, level)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *level
	m.levels[cellKey(level.VariantID, level.WarehouseID)] = &copied
	return nil
}

func (m *MockStockRepository) ListMovements(ctx context.Context, variantID, warehouseID string) ([]domain.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.StockMovement
	for i := range m.movements {
		if m.movements[i].VariantID == variantID && m.movements[i].WarehouseID == warehouseID {
			out = append(out, m.movements[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MovementDate.Equal(out[j].MovementDate) {
			return out[i].MovementDate.Before(out[j].MovementDate)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (m *MockStockRepository) ListMovementsTx(ctx context.Context, tx usecase.Transaction, variantID, warehouseID string) ([]domain.StockMovement, error) {
	return m.ListMovements(ctx, variantID, warehouseID)
}

func (m *MockStockRepository) ListLevels(ctx context.Context, limit, offset int) ([]*domain.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var levels []*domain.StockLevel
	for _, level := range m.levels {
		copied := *level
		levels = append(levels, &copied)
	}
	sort.Slice(levels, func(i, j int) bool {
		return cellKey(levels[i].VariantID, levels[i].WarehouseID) < cellKey(levels[j].VariantID, levels[j].WarehouseID)
	})
	if offset > len(levels) {
		return nil, nil
	}
	levels = levels[offset:]
	if limit > 0 && len(levels) > limit {
		levels = levels[:limit]
	}
	return levels, nil
}

// MovementCount returns the number of stored movements.
func (m *MockStockRepository) MovementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.movements)
}

// MockSagaRepository is an in-memory SagaRepository.
type MockSagaRepository struct {
	mu    sync.RWMutex
	sagas map[string]*domain.FulfillmentSaga
}

func NewMockSagaRepository() *MockSagaRepository {
	return &MockSagaRepository{sagas: make(map[string]*domain.FulfillmentSaga)}
}

func (m *MockSagaRepository) Create(ctx context.Context, saga *domain.FulfillmentSaga) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *saga
	m.sagas[saga.ID] = &copied
	return nil
}

func (m *MockSagaRepository) CreateTx(ctx context.Context, tx usecase.Transaction, saga *domain.FulfillmentSaga) error {
	return m.Create(ctx, saga)
}

// All returns every stored saga.
func (m *MockSagaRepository) All() []*domain.FulfillmentSaga {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.FulfillmentSaga
	for _, s := range m.sagas {
		copied := *s
		out = append(out, &copied)
	}
	return out
}

func (m *MockSagaRepository) GetByID(ctx context.Context, id string) (*domain.FulfillmentSaga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sagas[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, domain.ErrSagaNotFound
}

// MockOutboxRepository is an in-memory OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	Events []*domain.OutboxEvent
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if !e.Published {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Events[:0]
	for _, e := range m.Events {
		if !e.Published || e.PublishedAt == nil || e.PublishedAt.After(before) {
			kept = append(kept, e)
		}
	}
	m.Events = kept
	return nil
}

// MockAuditRepository is an in-memory AuditRepository.
type MockAuditRepository struct {
	mu   sync.RWMutex
	Logs []*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	return m.Create(ctx, log)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.Logs {
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && l.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
