package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
	"github.com/iho/erpledger/internal/usecase/mocks"
)

var testTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type journalFixture struct {
	accounts *mocks.MockAccountRepository
	journals *mocks.MockJournalRepository
	rates    *mocks.MockRateRepository
	outbox   *mocks.MockOutboxRepository
	audit    *mocks.MockAuditRepository
	txm      *mocks.MockTransactionManager
	metrics  *mocks.MockMetricsRecorder
	uc       *usecase.JournalUseCase
}

func newJournalFixture() *journalFixture {
	f := &journalFixture{
		accounts: mocks.NewMockAccountRepository(),
		journals: mocks.NewMockJournalRepository(),
		rates:    mocks.NewMockRateRepository(),
		outbox:   mocks.NewMockOutboxRepository(),
		audit:    mocks.NewMockAuditRepository(),
		txm:      mocks.NewMockTransactionManager(),
		metrics:  mocks.NewMockMetricsRecorder(),
	}

	companies := mocks.NewMockCompanyRepository()
	companies.Seed(
		&domain.Company{ID: "co-1", Name: "Acme", BaseCurrency: "USD"},
		&domain.Company{ID: "co-2", Name: "Globex", BaseCurrency: "EUR"},
	)

	f.accounts.Seed(
		&domain.Account{ID: "acc-cash", CompanyID: "co-1", Code: "1000", Name: "Cash", Type: domain.AccountTypeAsset, Active: true},
		&domain.Account{ID: "acc-rev", CompanyID: "co-1", Code: "4000", Name: "Revenue", Type: domain.AccountTypeRevenue, Active: true},
		&domain.Account{ID: "acc-frozen", CompanyID: "co-1", Code: "1900", Name: "Frozen", Type: domain.AccountTypeAsset, Active: false},
		&domain.Account{ID: "acc-other", CompanyID: "co-2", Code: "1000", Name: "Cash", Type: domain.AccountTypeAsset, Active: true},
	)

	f.uc = usecase.NewJournalUseCase(
		f.txm, f.accounts, companies, f.rates, f.journals, f.outbox, f.audit,
		mocks.NewMockIDGenerator(), mocks.NewMockClock(testTime), usecase.NopRetrier{}, f.metrics,
	)

	return f
}

func balancedInput(companyID string) usecase.PostEntryInput {
	return usecase.PostEntryInput{
		CompanyID: companyID,
		Date:      testTime,
		Lines: []usecase.EntryLineInput{
			{AccountID: "acc-cash", Debit: dec("100")},
			{AccountID: "acc-rev", Credit: dec("100")},
		},
	}
}

func TestJournalPost(t *testing.T) {
	f := newJournalFixture()

	entry, err := f.uc.Post(context.Background(), balancedInput("co-1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.Seq)
	require.True(t, entry.Posted)
	require.Len(t, entry.Lines, 2)
	require.True(t, entry.Lines[0].BaseDebit.Equal(dec("100")))
	require.True(t, entry.Lines[1].BaseCredit.Equal(dec("100")))
	require.True(t, entry.Imbalance().IsZero())

	require.True(t, f.txm.LastCommitted())
	require.Len(t, f.outbox.Events, 1)
	require.Equal(t, domain.EventTypeEntryPosted, f.outbox.Events[0].EventType)
	require.Len(t, f.audit.Logs, 1)
	require.Equal(t, 1, f.metrics.Posted["co-1"])
}

func TestJournalPostSequencePerCompany(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	first, err := f.uc.Post(ctx, balancedInput("co-1"))
	require.NoError(t, err)
	second, err := f.uc.Post(ctx, balancedInput("co-1"))
	require.NoError(t, err)

	other, err := f.uc.Post(ctx, usecase.PostEntryInput{
		CompanyID: "co-2",
		Date:      testTime,
		Lines: []usecase.EntryLineInput{
			{AccountID: "acc-other", Debit: dec("50")},
			{AccountID: "acc-other", Credit: dec("50")},
		},
	})
	require.NoError(t, err)

	require.Equal(t, int64(1), first.Seq)
	require.Equal(t, int64(2), second.Seq)
	require.Equal(t, int64(1), other.Seq)
}

func TestJournalPostValidation(t *testing.T) {
	tests := []struct {
		name    string
		lines   []usecase.EntryLineInput
		wantErr error
	}{
		{
			name: "unknown account wins over ambiguous line",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-missing", Debit: dec("100")},
				{AccountID: "acc-rev", Debit: dec("50"), Credit: dec("50")},
			},
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name: "inactive account rejected",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-frozen", Debit: dec("100")},
				{AccountID: "acc-rev", Credit: dec("100")},
			},
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name: "account of another company rejected",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-other", Debit: dec("100")},
				{AccountID: "acc-rev", Credit: dec("100")},
			},
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name: "ambiguous line wins over imbalance",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-cash", Debit: dec("50"), Credit: dec("50")},
				{AccountID: "acc-rev", Credit: dec("100")},
			},
			wantErr: domain.ErrAmbiguousLine,
		},
		{
			name: "empty line rejected",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-cash"},
				{AccountID: "acc-rev", Credit: dec("100")},
			},
			wantErr: domain.ErrAmbiguousLine,
		},
		{
			name: "negative amount rejected",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-cash", Debit: dec("-100")},
				{AccountID: "acc-rev", Credit: dec("-100")},
			},
			wantErr: domain.ErrAmbiguousLine,
		},
		{
			name: "unbalanced entry rejected",
			lines: []usecase.EntryLineInput{
				{AccountID: "acc-cash", Debit: dec("100")},
				{AccountID: "acc-rev", Credit: dec("90")},
			},
			wantErr: domain.ErrUnbalanced,
		},
		{
			name:    "empty entry rejected",
			lines:   nil,
			wantErr: domain.ErrTooFewLines,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJournalFixture()

			_, err := f.uc.Post(context.Background(), usecase.PostEntryInput{
				CompanyID: "co-1",
				Date:      testTime,
				Lines:     tt.lines,
			})
			require.ErrorIs(t, err, tt.wantErr)

			// A rejected entry must leave no trace.
			require.Equal(t, 0, f.journals.EntryCount())
			require.Empty(t, f.outbox.Events)
			require.False(t, f.txm.LastCommitted())
		})
	}
}

func TestJournalPostUnbalancedDelta(t *testing.T) {
	f := newJournalFixture()

	_, err := f.uc.Post(context.Background(), usecase.PostEntryInput{
		CompanyID: "co-1",
		Date:      testTime,
		Lines: []usecase.EntryLineInput{
			{AccountID: "acc-cash", Debit: dec("100.00")},
			{AccountID: "acc-rev", Credit: dec("99.25")},
		},
	})

	var unbalanced *domain.UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	require.True(t, unbalanced.Delta.Equal(dec("0.75")))
	require.Equal(t, "USD", unbalanced.Currency)
	require.Equal(t, 1, f.metrics.Rejected["validation"])
}

func TestJournalPostForeignCurrency(t *testing.T) {
	f := newJournalFixture()
	eur := "EUR"
	rate := dec("1.0850")

	entry, err := f.uc.Post(context.Background(), usecase.PostEntryInput{
		CompanyID: "co-1",
		Date:      testTime,
		Currency:  &eur,
		Rate:      &rate,
		Lines: []usecase.EntryLineInput{
			{AccountID: "acc-cash", Debit: dec("100")},
			{AccountID: "acc-rev", Credit: dec("100")},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, entry.Rate)
	// 100 * 1.0850 rounded half-to-even at 2 decimal places.
	require.True(t, entry.Lines[0].BaseDebit.Equal(dec("108.50")))
	require.True(t, entry.Lines[1].BaseCredit.Equal(dec("108.50")))
	require.True(t, entry.Lines[0].Debit.Equal(dec("100")))
	require.NotNil(t, entry.Lines[0].CurrencyAmount)
	require.True(t, entry.Lines[0].CurrencyAmount.Equal(dec("100")))
	require.True(t, entry.Imbalance().IsZero())
}

func TestJournalPostStoredRateFallback(t *testing.T) {
	f := newJournalFixture()
	f.rates.SeedRate("EUR", "USD", dec("1.10"))
	eur := "EUR"

	entry, err := f.uc.Post(context.Background(), usecase.PostEntryInput{
		CompanyID: "co-1",
		Date:      testTime,
		Currency:  &eur,
		Lines: []usecase.EntryLineInput{
			{AccountID: "acc-cash", Debit: dec("200")},
			{AccountID: "acc-rev", Credit: dec("200")},
		},
	})
	require.NoError(t, err)
	require.True(t, entry.Lines[0].BaseDebit.Equal(dec("220.00")))
}

func TestJournalPostRateErrors(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()
	eur := "EUR"
	input := balancedInput("co-1")
	input.Currency = &eur

	_, err := f.uc.Post(ctx, input)
	require.ErrorIs(t, err, domain.ErrMissingRate)

	bad := dec("-2")
	input.Rate = &bad
	_, err = f.uc.Post(ctx, input)
	require.ErrorIs(t, err, domain.ErrInvalidRate)

	unknown := "ZZZ"
	input.Currency = &unknown
	input.Rate = nil
	_, err = f.uc.Post(ctx, input)
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestJournalReverse(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	original, err := f.uc.Post(ctx, balancedInput("co-1"))
	require.NoError(t, err)

	reversal, err := f.uc.Reverse(ctx, original.ID)
	require.NoError(t, err)

	require.Equal(t, int64(2), reversal.Seq)
	require.NotNil(t, reversal.ReversalOfID)
	require.Equal(t, original.ID, *reversal.ReversalOfID)
	require.Equal(t, testTime, reversal.Date)

	// Debits and credits swap, so the pair nets to zero.
	require.True(t, reversal.Lines[0].Credit.Equal(original.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(original.Lines[1].Credit))

	net, err := f.journals.SumPostedNet(ctx, "co-1")
	require.NoError(t, err)
	require.True(t, net.IsZero())

	stored, err := f.uc.GetEntry(ctx, original.ID)
	require.NoError(t, err)
	require.True(t, stored.Reversed)

	_, err = f.uc.Reverse(ctx, original.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyReversed)

	require.Equal(t, 1, f.metrics.Reversed["co-1"])
}

func TestJournalReverseNotFound(t *testing.T) {
	f := newJournalFixture()

	_, err := f.uc.Reverse(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestGetAccountLedger(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	for range 3 {
		_, err := f.uc.Post(ctx, balancedInput("co-1"))
		require.NoError(t, err)
	}

	lines, err := f.uc.GetAccountLedger(ctx, usecase.GetAccountLedgerInput{AccountID: "acc-cash"})
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// Ordered by entry sequence.
	require.Equal(t, int64(1), lines[0].Seq)
	require.Equal(t, int64(3), lines[2].Seq)

	paged, err := f.uc.GetAccountLedger(ctx, usecase.GetAccountLedgerInput{AccountID: "acc-cash", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, int64(3), paged[0].Seq)
}

func TestJournalPostInfrastructureErrorNotCountedAsRejection(t *testing.T) {
	f := newJournalFixture()
	boom := errors.New("connection reset")
	f.journals.CreateEntryFunc = func(context.Context, usecase.Transaction, *domain.JournalEntry) error {
		return boom
	}

	_, err := f.uc.Post(context.Background(), balancedInput("co-1"))
	require.ErrorIs(t, err, boom)
	require.Empty(t, f.metrics.Rejected)
	require.False(t, f.txm.LastCommitted())
}

func TestJournalPostBoundsTransaction(t *testing.T) {
	f := newJournalFixture()

	var deadline time.Time
	var ok bool
	f.journals.CreateEntryFunc = func(ctx context.Context, _ usecase.Transaction, _ *domain.JournalEntry) error {
		deadline, ok = ctx.Deadline()
		return nil
	}

	_, err := f.uc.Post(context.Background(), balancedInput("co-1"))
	require.NoError(t, err)
	require.True(t, ok, "posting must run under a deadline")
	require.LessOrEqual(t, time.Until(deadline), usecase.DefaultTransactionTimeout)
}
