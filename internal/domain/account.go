package domain

import (
	"fmt"
	"strings"
	"time"
)

// AccountType classifies an account in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}

	return false
}

// Account is an entry in a company's chart of accounts. Code is unique
// per company; Type is immutable once any journal line references the
// account.
type Account struct {
	ID        string
	CompanyID string
	Code      string
	Name      string
	Type      AccountType
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	MaxAccountCodeLength = 32
	MaxAccountNameLength = 255
)

// Validate checks the account's own fields.
func (a *Account) Validate() error {
	code := strings.TrimSpace(a.Code)
	if code == "" || len(code) > MaxAccountCodeLength {
		return fmt.Errorf("account code must be 1-%d characters", MaxAccountCodeLength)
	}

	name := strings.TrimSpace(a.Name)
	if name == "" || len(name) > MaxAccountNameLength {
		return fmt.Errorf("account name must be 1-%d characters", MaxAccountNameLength)
	}

	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}

	return nil
}

// CanPost reports whether new journal lines may reference the account.
// Deactivation blocks future postings only; history is untouched.
func (a *Account) CanPost() bool {
	return a.Active
}
