package usecase

import (
	"context"

	"github.com/iho/erpledger/internal/domain"
)

// AccountUseCase manages the chart of accounts.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	companyRepo CompanyRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	clock       Clock
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	companyRepo CompanyRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	clock Clock,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		companyRepo: companyRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
		clock:       clock,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	CompanyID string
	Code      string
	Name      string
	Type      domain.AccountType
}

// Create registers an account in the company's chart of accounts.
// A duplicate (company, code) pair fails with ErrDuplicateCode.
func (uc *AccountUseCase) Create(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if _, err := uc.companyRepo.GetByID(ctx, input.CompanyID); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		CompanyID: input.CompanyID,
		Code:      input.Code,
		Name:      input.Name,
		Type:      input.Type,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	_ = uc.auditRepo.Create(ctx, &domain.AuditLog{
		Action:       string(domain.AuditActionAccountCreate),
		ResourceType: "account",
		ResourceID:   account.ID,
		AfterState:   domain.MarshalState(account),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	})

	return account, nil
}

// Lookup finds an account by company and code.
func (uc *AccountUseCase) Lookup(ctx context.Context, companyID, code string) (*domain.Account, error) {
	return uc.accountRepo.GetByCode(ctx, companyID, code)
}

// Get retrieves an account by ID.
func (uc *AccountUseCase) Get(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// Deactivate blocks future postings to the account. Historical
// postings are untouched.
func (uc *AccountUseCase) Deactivate(ctx context.Context, id string) error {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := uc.clock.Now()
	if err := uc.accountRepo.SetActive(ctx, account.ID, false, now); err != nil {
		return err
	}

	_ = uc.auditRepo.Create(ctx, &domain.AuditLog{
		Action:       string(domain.AuditActionAccountDeactivate),
		ResourceType: "account",
		ResourceID:   account.ID,
		BeforeState:  domain.MarshalState(account),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	})

	return nil
}

// Reactivate re-enables postings to a deactivated account.
func (uc *AccountUseCase) Reactivate(ctx context.Context, id string) error {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return uc.accountRepo.SetActive(ctx, account.ID, true, uc.clock.Now())
}

// ChangeType updates the account type. Rejected with ErrTypeImmutable
// once any journal line references the account.
func (uc *AccountUseCase) ChangeType(ctx context.Context, id string, newType domain.AccountType) error {
	if !newType.Valid() {
		return domain.ErrInvalidAccountType
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, []string{id})
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		return domain.ErrAccountNotFound
	}
	account := accounts[0]

	posted, err := uc.accountRepo.HasPostings(ctx, tx, id)
	if err != nil {
		return err
	}

	if posted {
		return domain.ErrTypeImmutable
	}

	now := uc.clock.Now()
	if err := uc.accountRepo.UpdateType(ctx, tx, id, newType, now); err != nil {
		return err
	}

	audit := &domain.AuditLog{
		Action:       string(domain.AuditActionAccountChangeType),
		ResourceType: "account",
		ResourceID:   id,
		BeforeState:  domain.MarshalState(map[string]string{"type": string(account.Type)}),
		AfterState:   domain.MarshalState(map[string]string{"type": string(newType)}),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// List returns a company's accounts.
func (uc *AccountUseCase) List(ctx context.Context, companyID string, limit, offset int) ([]*domain.Account, error) {
	if limit <= 0 {
		limit = DefaultLedgerPageSize
	}

	return uc.accountRepo.List(ctx, companyID, limit, offset)
}
