package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
)

func beginMockTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBegin()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return tx
}

func TestNextSequence(t *testing.T) {
	mockPool := newMockPool(t)
	tx := beginMockTx(t, mockPool)

	mockPool.ExpectQuery("INSERT INTO journal_sequences").
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"last_seq"}).AddRow(int64(42)))

	repo := NewJournalRepository(nil)
	seq, err := repo.NextSequence(context.Background(), tx, "co-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 42 {
		t.Fatalf("expected seq 42, got %d", seq)
	}

	assertExpectations(t, mockPool)
}

func TestMarkReversed(t *testing.T) {
	mockPool := newMockPool(t)
	tx := beginMockTx(t, mockPool)

	mockPool.ExpectExec("UPDATE journal_entries SET reversed").
		WithArgs("entry-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewJournalRepository(nil)
	if err := repo.MarkReversed(context.Background(), tx, "entry-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestMarkReversedNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	tx := beginMockTx(t, mockPool)

	mockPool.ExpectExec("UPDATE journal_entries SET reversed").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewJournalRepository(nil)
	err := repo.MarkReversed(context.Background(), tx, "gone")
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestHasPostings(t *testing.T) {
	mockPool := newMockPool(t)
	tx := beginMockTx(t, mockPool)

	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewAccountRepository(nil)
	posted, err := repo.HasPostings(context.Background(), tx, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !posted {
		t.Fatalf("expected postings to exist")
	}

	assertExpectations(t, mockPool)
}
