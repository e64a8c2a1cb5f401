package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
	"github.com/iho/erpledger/internal/usecase/mocks"
)

type recoveryFixture struct {
	stock    *mocks.MockStockRepository
	journals *mocks.MockJournalRepository
	audit    *mocks.MockAuditRepository
	stockUC  *usecase.StockUseCase
	uc       *usecase.RecoveryUseCase
}

func newRecoveryFixture() *recoveryFixture {
	f := &recoveryFixture{
		stock:    mocks.NewMockStockRepository(),
		journals: mocks.NewMockJournalRepository(),
		audit:    mocks.NewMockAuditRepository(),
	}

	txm := mocks.NewMockTransactionManager()
	idGen := mocks.NewMockIDGenerator()
	clock := mocks.NewMockClock(testTime)

	f.stockUC = usecase.NewStockUseCase(
		txm, f.stock, mocks.NewMockOutboxRepository(), f.audit, nil,
		idGen, clock, usecase.NopRetrier{}, mocks.NewMockMetricsRecorder(),
	)
	f.uc = usecase.NewRecoveryUseCase(txm, f.stock, f.journals, f.audit, nil, clock)

	return f
}

func (f *recoveryFixture) moveStock(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.stockUC.RecordMovement(ctx, inbound("10", "5"))
	require.NoError(t, err)
	_, err = f.stockUC.RecordMovement(ctx, inbound("10", "7"))
	require.NoError(t, err)
	_, err = f.stockUC.RecordMovement(ctx, outbound("4"))
	require.NoError(t, err)
}

func TestVerifyCellConsistent(t *testing.T) {
	f := newRecoveryFixture()
	f.moveStock(t)

	result, err := f.uc.VerifyCell(context.Background(), "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.True(t, result.ProjectedQty.Equal(dec("16")))
	require.True(t, result.ReplayedQty.Equal(dec("16")))
	require.True(t, result.ReplayedCost.Equal(dec("6")))
}

func TestVerifyCellDetectsDrift(t *testing.T) {
	f := newRecoveryFixture()
	f.moveStock(t)
	ctx := context.Background()

	// Corrupt the projection behind the log's back.
	require.NoError(t, f.stock.UpdateLevel(ctx, nil, &domain.StockLevel{
		VariantID:       "var-1",
		WarehouseID:     "wh-1",
		QuantityOnHand:  dec("99"),
		WeightedAvgCost: dec("1"),
	}))

	result, err := f.uc.VerifyCell(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.False(t, result.Consistent)
	require.True(t, result.ProjectedQty.Equal(dec("99")))
	require.True(t, result.ReplayedQty.Equal(dec("16")))
}

func TestRepairCell(t *testing.T) {
	f := newRecoveryFixture()
	f.moveStock(t)
	ctx := context.Background()

	require.NoError(t, f.stock.UpdateLevel(ctx, nil, &domain.StockLevel{
		VariantID:       "var-1",
		WarehouseID:     "wh-1",
		QuantityOnHand:  dec("99"),
		WeightedAvgCost: dec("1"),
	}))

	result, err := f.uc.RepairCell(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.False(t, result.Consistent)

	level, err := f.stock.GetLevel(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, level.QuantityOnHand.Equal(dec("16")))
	require.True(t, level.WeightedAvgCost.Equal(dec("6")))

	var repaired bool
	for _, log := range f.audit.Logs {
		if log.Action == string(domain.AuditActionCellRepair) {
			repaired = true
		}
	}
	require.True(t, repaired)

	// A second repair finds nothing to fix and writes no audit row.
	logsBefore := len(f.audit.Logs)
	result, err = f.uc.RepairCell(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.Len(t, f.audit.Logs, logsBefore)
}

func TestRepairCellCorruptLog(t *testing.T) {
	f := newRecoveryFixture()
	ctx := context.Background()

	// An outbound movement with no preceding inbound cannot replay.
	require.NoError(t, f.stock.CreateMovement(ctx, nil, &domain.StockMovement{
		ID:           "mv-bad",
		CompanyID:    "co-1",
		VariantID:    "var-1",
		WarehouseID:  "wh-1",
		Quantity:     dec("-5"),
		Type:         domain.MovementTypeOut,
		UnitCost:     dec("1"),
		MovementDate: testTime,
	}))

	_, err := f.uc.RepairCell(ctx, "var-1", "wh-1")
	require.ErrorIs(t, err, domain.ErrNegativeBalanceProjected)
}

func TestVerifyAllCells(t *testing.T) {
	f := newRecoveryFixture()
	f.moveStock(t)
	ctx := context.Background()

	c := dec("2")
	_, err := f.stockUC.RecordMovement(ctx, usecase.RecordMovementInput{
		CompanyID: "co-1", VariantID: "var-2", WarehouseID: "wh-1",
		Quantity: dec("5"), Type: domain.MovementTypeIn, UnitCost: &c,
	})
	require.NoError(t, err)

	require.NoError(t, f.stock.UpdateLevel(ctx, nil, &domain.StockLevel{
		VariantID:       "var-2",
		WarehouseID:     "wh-1",
		QuantityOnHand:  dec("50"),
		WeightedAvgCost: dec("2"),
	}))

	drifted, err := f.uc.VerifyAllCells(ctx)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	require.Equal(t, "var-2", drifted[0].VariantID)
}

func TestCheckJournalConsistency(t *testing.T) {
	f := newRecoveryFixture()
	ctx := context.Background()

	require.NoError(t, f.uc.CheckJournalConsistency(ctx, "co-1"))

	// Inject a corrupt entry directly into the store.
	require.NoError(t, f.journals.CreateEntry(ctx, nil, &domain.JournalEntry{
		ID:        "bad-entry",
		CompanyID: "co-1",
		Seq:       1,
		Posted:    true,
		Lines: []domain.JournalLine{
			{AccountID: "acc-cash", BaseDebit: dec("100")},
			{AccountID: "acc-rev", BaseCredit: dec("90")},
		},
	}))

	err := f.uc.CheckJournalConsistency(ctx, "co-1")
	require.ErrorIs(t, err, domain.ErrUnbalanced)

	var unbalanced *domain.UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	require.True(t, unbalanced.Delta.Equal(dec("10")))
}
