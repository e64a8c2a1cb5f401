package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalLine is one side of a journal entry. Debit and Credit are
// expressed in the entry currency; BaseDebit and BaseCredit carry the
// amounts converted to the company base currency at the entry rate,
// rounded half-to-even at the base currency's minor-unit scale.
// Exactly one of Debit/Credit is non-zero.
type JournalLine struct {
	ID             string
	EntryID        string
	AccountID      string
	PartnerID      *string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	BaseDebit      decimal.Decimal
	BaseCredit     decimal.Decimal
	CurrencyAmount *decimal.Decimal
}

// ValidateShape enforces the one-sided-line rule.
func (l *JournalLine) ValidateShape() error {
	debitSet := !l.Debit.IsZero()
	creditSet := !l.Credit.IsZero()

	if debitSet == creditSet {
		return ErrAmbiguousLine
	}

	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrAmbiguousLine
	}

	return nil
}

// Net returns debit minus credit in the entry currency.
func (l *JournalLine) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// BaseNet returns debit minus credit in the base currency.
func (l *JournalLine) BaseNet() decimal.Decimal {
	return l.BaseDebit.Sub(l.BaseCredit)
}

// JournalEntry owns its lines as an indivisible unit. Once posted it is
// immutable except for the Reversed marker; corrections are reversal
// plus a new entry. Seq is assigned per company at post time and is the
// sole ordering key for derived reports.
type JournalEntry struct {
	ID           string
	CompanyID    string
	Seq          int64
	Date         time.Time
	Currency     *string
	Rate         *decimal.Decimal
	Posted       bool
	Reversed     bool
	ReversalOfID *string
	Lines        []JournalLine
	CreatedAt    time.Time
}

// Imbalance sums base-currency nets over all lines. Zero means the
// entry balances.
func (e *JournalEntry) Imbalance() decimal.Decimal {
	sum := decimal.Zero
	for i := range e.Lines {
		sum = sum.Add(e.Lines[i].BaseNet())
	}

	return sum
}

// ReversalLines builds the line set for a reversing entry: every
// debit/credit pair swapped, foreign amounts negated. IDs and entry
// references are left for the caller to assign.
func ReversalLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for i := range lines {
		l := lines[i]

		var amount *decimal.Decimal
		if l.CurrencyAmount != nil {
			neg := l.CurrencyAmount.Neg()
			amount = &neg
		}

		out = append(out, JournalLine{
			AccountID:      l.AccountID,
			PartnerID:      l.PartnerID,
			Debit:          l.Credit,
			Credit:         l.Debit,
			BaseDebit:      l.BaseCredit,
			BaseCredit:     l.BaseDebit,
			CurrencyAmount: amount,
		})
	}

	return out
}

// LedgerLine is a posted line joined with its entry header, as returned
// by account ledger queries. Amounts are in base currency.
type LedgerLine struct {
	EntryID   string
	Seq       int64
	Date      time.Time
	AccountID string
	PartnerID *string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Reversed  bool
}
