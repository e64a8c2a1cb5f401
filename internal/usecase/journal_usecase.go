package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/erpledger/internal/domain"
)

// JournalUseCase validates and posts journal entries, enforcing the
// zero-balance invariant in the company's base currency.
type JournalUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	companyRepo CompanyRepository
	rateRepo    RateRepository
	journalRepo JournalRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	clock       Clock
	retrier     Retrier
	metrics     MetricsRecorder
}

// NewJournalUseCase creates a new JournalUseCase.
func NewJournalUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	companyRepo CompanyRepository,
	rateRepo RateRepository,
	journalRepo JournalRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	clock Clock,
	retrier Retrier,
	metrics MetricsRecorder,
) *JournalUseCase {
	return &JournalUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		companyRepo: companyRepo,
		rateRepo:    rateRepo,
		journalRepo: journalRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
		clock:       clock,
		retrier:     retrier,
		metrics:     metrics,
	}
}

// EntryLineInput is one draft line. Amounts are in the entry currency.
type EntryLineInput struct {
	AccountID string
	PartnerID *string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostEntryInput is a draft journal entry. Currency is optional; when
// set and different from the company base currency, Rate converts line
// amounts to base. A nil Rate falls back to the stored rate for the
// entry date.
type PostEntryInput struct {
	CompanyID string
	Date      time.Time
	Currency  *string
	Rate      *decimal.Decimal
	Lines     []EntryLineInput
}

// Post validates and posts a draft entry. On success the entry is
// immutable and carries a per-company monotonic sequence number.
func (uc *JournalUseCase) Post(ctx context.Context, input PostEntryInput) (*domain.JournalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var entry *domain.JournalEntry

	err := uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		posted, err := uc.postInTx(ctx, tx, input)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		entry = posted

		return nil
	})
	if err != nil {
		if domain.IsValidationError(err) {
			uc.metrics.EntryRejected(rejectionReason(err))
		}

		return nil, err
	}

	uc.metrics.EntryPosted(input.CompanyID)

	return entry, nil
}

// postInTx runs the full validation pipeline and writes the entry, its
// lines, the outbox event and the audit record inside the caller's
// transaction. Shared with the fulfillment saga.
func (uc *JournalUseCase) postInTx(ctx context.Context, tx Transaction, input PostEntryInput) (*domain.JournalEntry, error) {
	company, err := uc.companyRepo.GetByID(ctx, input.CompanyID)
	if err != nil {
		return nil, err
	}

	rate, foreign, err := uc.resolveRate(ctx, company, input)
	if err != nil {
		return nil, err
	}

	// Validation order: unknown account, ambiguous line, balance,
	// line count.
	accounts, err := uc.lockAccounts(ctx, tx, input.Lines)
	if err != nil {
		return nil, err
	}

	for i := range input.Lines {
		account := accounts[input.Lines[i].AccountID]
		if account == nil || account.CompanyID != input.CompanyID || !account.CanPost() {
			return nil, &domain.UnknownAccountError{AccountID: input.Lines[i].AccountID, LineIndex: i}
		}
	}

	baseExponent := domain.CurrencyExponent(company.BaseCurrency)
	lines := make([]domain.JournalLine, 0, len(input.Lines))
	imbalance := decimal.Zero

	for i := range input.Lines {
		line := domain.JournalLine{
			AccountID: input.Lines[i].AccountID,
			PartnerID: input.Lines[i].PartnerID,
			Debit:     input.Lines[i].Debit,
			Credit:    input.Lines[i].Credit,
		}

		if err := line.ValidateShape(); err != nil {
			return nil, err
		}

		if foreign {
			line.BaseDebit = domain.ConvertAmount(line.Debit, rate, baseExponent)
			line.BaseCredit = domain.ConvertAmount(line.Credit, rate, baseExponent)
			net := line.Net()
			line.CurrencyAmount = &net
		} else {
			line.BaseDebit = line.Debit
			line.BaseCredit = line.Credit
		}

		imbalance = imbalance.Add(line.BaseNet())
		lines = append(lines, line)
	}

	if !imbalance.IsZero() {
		return nil, &domain.UnbalancedError{Delta: imbalance, Currency: company.BaseCurrency}
	}

	if len(lines) < 2 {
		return nil, domain.ErrTooFewLines
	}

	seq, err := uc.journalRepo.NextSequence(ctx, tx, input.CompanyID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	entry := &domain.JournalEntry{
		ID:        uc.idGen.Generate(),
		CompanyID: input.CompanyID,
		Seq:       seq,
		Date:      input.Date,
		Currency:  input.Currency,
		Posted:    true,
		CreatedAt: now,
	}

	if foreign {
		entry.Rate = &rate
	}

	for i := range lines {
		lines[i].ID = uc.idGen.Generate()
		lines[i].EntryID = entry.ID
	}
	entry.Lines = lines

	if err := uc.journalRepo.CreateEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.writePostedEvent(ctx, tx, entry, now); err != nil {
		return nil, err
	}

	return entry, nil
}

// Reverse creates a compensating entry with every line's debit and
// credit swapped, dated at reversal time. The original entry is marked
// reversed, never deleted.
func (uc *JournalUseCase) Reverse(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var reversal *domain.JournalEntry

	err := uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		original, err := uc.journalRepo.GetByIDForUpdate(ctx, tx, entryID)
		if err != nil {
			return err
		}

		if !original.Posted {
			return domain.ErrNotPosted
		}

		if original.Reversed {
			return domain.ErrAlreadyReversed
		}

		seq, err := uc.journalRepo.NextSequence(ctx, tx, original.CompanyID)
		if err != nil {
			return err
		}

		now := uc.clock.Now()
		entry := &domain.JournalEntry{
			ID:           uc.idGen.Generate(),
			CompanyID:    original.CompanyID,
			Seq:          seq,
			Date:         now,
			Currency:     original.Currency,
			Rate:         original.Rate,
			Posted:       true,
			ReversalOfID: &original.ID,
			CreatedAt:    now,
		}

		lines := domain.ReversalLines(original.Lines)
		for i := range lines {
			lines[i].ID = uc.idGen.Generate()
			lines[i].EntryID = entry.ID
		}
		entry.Lines = lines

		if err := uc.journalRepo.CreateEntry(ctx, tx, entry); err != nil {
			return err
		}

		if err := uc.journalRepo.MarkReversed(ctx, tx, original.ID); err != nil {
			return err
		}

		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   entry.ID,
			AggregateType: domain.AggregateTypeJournalEntry,
			EventType:     domain.EventTypeEntryReversed,
			Payload: domain.MarshalState(domain.EntryReversedEvent{
				ReversalEntryID: entry.ID,
				OriginalEntryID: original.ID,
				CompanyID:       entry.CompanyID,
			}),
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}

		audit := &domain.AuditLog{
			Action:       string(domain.AuditActionEntryReverse),
			ResourceType: domain.AggregateTypeJournalEntry,
			ResourceID:   original.ID,
			AfterState:   domain.MarshalState(map[string]string{"reversal_entry_id": entry.ID}),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		}
		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		reversal = entry

		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.EntryReversed(reversal.CompanyID)

	return reversal, nil
}

// GetEntry retrieves a journal entry with its lines.
func (uc *JournalUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.journalRepo.GetByID(ctx, id)
}

// GetAccountLedgerInput filters an account ledger query.
type GetAccountLedgerInput struct {
	AccountID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// GetAccountLedger returns posted lines for an account ordered by the
// per-company entry sequence.
func (uc *JournalUseCase) GetAccountLedger(ctx context.Context, input GetAccountLedgerInput) ([]domain.LedgerLine, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultLedgerPageSize
	}

	if input.Limit > MaxLedgerPageSize {
		input.Limit = MaxLedgerPageSize
	}

	return uc.journalRepo.ListLinesByAccount(ctx, input.AccountID, input.From, input.To, input.Limit, input.Offset)
}

// resolveRate determines the conversion rate into the base currency.
// Base-currency entries use no rate at all.
func (uc *JournalUseCase) resolveRate(ctx context.Context, company *domain.Company, input PostEntryInput) (decimal.Decimal, bool, error) {
	if input.Currency == nil || *input.Currency == company.BaseCurrency {
		return decimal.Zero, false, nil
	}

	if err := domain.ValidateCurrency(*input.Currency); err != nil {
		return decimal.Zero, false, err
	}

	if input.Rate != nil {
		if input.Rate.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, false, domain.ErrInvalidRate
		}

		return *input.Rate, true, nil
	}

	rate, err := uc.rateRepo.GetRate(ctx, *input.Currency, company.BaseCurrency, input.Date)
	if err != nil {
		return decimal.Zero, false, domain.ErrMissingRate
	}

	return rate, true, nil
}

// lockAccounts loads all referenced accounts with FOR UPDATE locks in
// sorted ID order to prevent deadlocks between concurrent postings.
func (uc *JournalUseCase) lockAccounts(ctx context.Context, tx Transaction, lines []EntryLineInput) (map[string]*domain.Account, error) {
	seen := make(map[string]bool)

	var ids []string
	for i := range lines {
		if !seen[lines[i].AccountID] {
			seen[lines[i].AccountID] = true
			ids = append(ids, lines[i].AccountID)
		}
	}

	sort.Strings(ids)

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}

	return m, nil
}

func (uc *JournalUseCase) writePostedEvent(ctx context.Context, tx Transaction, entry *domain.JournalEntry, now time.Time) error {
	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entry.ID,
		AggregateType: domain.AggregateTypeJournalEntry,
		EventType:     domain.EventTypeEntryPosted,
		Payload: domain.MarshalState(domain.EntryPostedEvent{
			EntryID:   entry.ID,
			CompanyID: entry.CompanyID,
			Seq:       entry.Seq,
			Date:      entry.Date.Format(time.RFC3339),
			LineCount: len(entry.Lines),
		}),
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	audit := &domain.AuditLog{
		Action:       string(domain.AuditActionEntryPost),
		ResourceType: domain.AggregateTypeJournalEntry,
		ResourceID:   entry.ID,
		AfterState:   domain.MarshalState(entry),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}

	return uc.auditRepo.CreateTx(ctx, tx, audit)
}

func rejectionReason(err error) string {
	switch {
	case domain.IsConsistencyError(err):
		return "consistency"
	case domain.IsValidationError(err):
		return "validation"
	default:
		return "infrastructure"
	}
}
