package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/erpledger/internal/domain"
	"github.com/iho/erpledger/internal/usecase"
	"github.com/iho/erpledger/internal/usecase/mocks"
)

type stockFixture struct {
	stock   *mocks.MockStockRepository
	outbox  *mocks.MockOutboxRepository
	audit   *mocks.MockAuditRepository
	txm     *mocks.MockTransactionManager
	metrics *mocks.MockMetricsRecorder
	uc      *usecase.StockUseCase
}

func newStockFixture(cache usecase.Cache) *stockFixture {
	f := &stockFixture{
		stock:   mocks.NewMockStockRepository(),
		outbox:  mocks.NewMockOutboxRepository(),
		audit:   mocks.NewMockAuditRepository(),
		txm:     mocks.NewMockTransactionManager(),
		metrics: mocks.NewMockMetricsRecorder(),
	}

	f.uc = usecase.NewStockUseCase(
		f.txm, f.stock, f.outbox, f.audit, cache,
		mocks.NewMockIDGenerator(), mocks.NewMockClock(testTime), usecase.NopRetrier{}, f.metrics,
	)

	return f
}

func inbound(qty, cost string) usecase.RecordMovementInput {
	c := dec(cost)
	return usecase.RecordMovementInput{
		CompanyID:   "co-1",
		VariantID:   "var-1",
		WarehouseID: "wh-1",
		Quantity:    dec(qty),
		Type:        domain.MovementTypeIn,
		UnitCost:    &c,
	}
}

func outbound(qty string) usecase.RecordMovementInput {
	return usecase.RecordMovementInput{
		CompanyID:   "co-1",
		VariantID:   "var-1",
		WarehouseID: "wh-1",
		Quantity:    dec(qty).Neg(),
		Type:        domain.MovementTypeOut,
	}
}

func TestRecordMovementWeightedAverage(t *testing.T) {
	f := newStockFixture(nil)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, inbound("10", "5"))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, inbound("10", "7"))
	require.NoError(t, err)

	level, err := f.uc.CurrentBalance(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, level.QuantityOnHand.Equal(dec("20")))
	require.True(t, level.WeightedAvgCost.Equal(dec("6")))

	require.Equal(t, 2, f.metrics.Recorded["in"])
	require.Len(t, f.outbox.Events, 2)
}

func TestRecordMovementOutboundUsesAverageCost(t *testing.T) {
	f := newStockFixture(nil)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, inbound("10", "5"))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, inbound("10", "7"))
	require.NoError(t, err)

	movement, err := f.uc.RecordMovement(ctx, outbound("5"))
	require.NoError(t, err)

	// Outbound cost comes from the projection, never the caller.
	require.True(t, movement.UnitCost.Equal(dec("6")))

	level, err := f.uc.CurrentBalance(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, level.QuantityOnHand.Equal(dec("15")))
	require.True(t, level.WeightedAvgCost.Equal(dec("6")))
}

func TestRecordMovementInsufficientStock(t *testing.T) {
	f := newStockFixture(nil)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, inbound("3", "5"))
	require.NoError(t, err)

	_, err = f.uc.RecordMovement(ctx, outbound("5"))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(dec("3")))
	require.True(t, insufficient.Requested.Equal(dec("5")))

	// The failed movement is not appended and the cell is untouched.
	require.Equal(t, 1, f.stock.MovementCount())
	level, err := f.uc.CurrentBalance(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, level.QuantityOnHand.Equal(dec("3")))
	require.Equal(t, 1, f.metrics.MRejected["consistency"])
}

func TestRecordMovementValidation(t *testing.T) {
	zeroCost := dec("4")

	tests := []struct {
		name    string
		input   usecase.RecordMovementInput
		wantErr error
	}{
		{
			name: "zero quantity",
			input: usecase.RecordMovementInput{
				VariantID: "var-1", WarehouseID: "wh-1",
				Quantity: dec("0"), Type: domain.MovementTypeIn, UnitCost: &zeroCost,
			},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name: "unknown movement type",
			input: usecase.RecordMovementInput{
				VariantID: "var-1", WarehouseID: "wh-1",
				Quantity: dec("1"), Type: domain.MovementType("teleport"), UnitCost: &zeroCost,
			},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name: "inbound without unit cost",
			input: usecase.RecordMovementInput{
				VariantID: "var-1", WarehouseID: "wh-1",
				Quantity: dec("1"), Type: domain.MovementTypeIn,
			},
			wantErr: domain.ErrUnitCostRequired,
		},
		{
			name: "outbound with unit cost",
			input: usecase.RecordMovementInput{
				VariantID: "var-1", WarehouseID: "wh-1",
				Quantity: dec("-1"), Type: domain.MovementTypeOut, UnitCost: &zeroCost,
			},
			wantErr: domain.ErrUnitCostNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStockFixture(nil)

			_, err := f.uc.RecordMovement(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 0, f.stock.MovementCount())
			require.Equal(t, 1, f.metrics.MRejected["validation"])
		})
	}
}

func TestMovementHistoryReplayMatchesProjection(t *testing.T) {
	f := newStockFixture(nil)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, inbound("8", "3.50"))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, outbound("2"))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, inbound("4", "5.00"))
	require.NoError(t, err)

	movements, err := f.uc.MovementHistory(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.Len(t, movements, 3)

	replayed, err := domain.ReplayMovements("var-1", "wh-1", movements)
	require.NoError(t, err)

	level, err := f.uc.CurrentBalance(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, replayed.QuantityOnHand.Equal(level.QuantityOnHand))
	require.True(t, replayed.WeightedAvgCost.Equal(level.WeightedAvgCost))
}

func TestCurrentBalanceCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	f := newStockFixture(cache)
	ctx := context.Background()

	// Cache miss: read the store, then populate the cache.
	cache.EXPECT().Get(ctx, "stock:var-1:wh-1").Return(nil, nil)
	cache.EXPECT().Set(ctx, "stock:var-1:wh-1", gomock.Any(), usecase.BalanceCacheTTL).Return(nil)

	level, err := f.uc.CurrentBalance(ctx, "var-1", "wh-1")
	require.NoError(t, err)
	require.True(t, level.QuantityOnHand.IsZero())
}

func TestRecordMovementInvalidatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	f := newStockFixture(cache)
	ctx := context.Background()

	cache.EXPECT().Delete(ctx, "stock:var-1:wh-1").Return(nil)

	_, err := f.uc.RecordMovement(ctx, inbound("1", "2"))
	require.NoError(t, err)
}
