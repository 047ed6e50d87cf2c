package indexer_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"

	"creditchain/app/apptest"
	"creditchain/core"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/redbank"
	"creditchain/services/indexer"
)

func setupJournal(t *testing.T) *indexer.Journal {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	j, err := indexer.New(db, nil, 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func liquidationResult(height uint64) core.Result {
	return core.Result{
		TxHash:   fmt.Sprintf("tx-%d", height),
		Height:   height,
		Time:     apptest.GenesisTime + height*5,
		Sender:   "liquidator",
		Contract: "creditmanager",
		Events: []types.Event{
			*events.CreditAccountAction{AccountID: "3", Action: "liquidate"}.Event(),
			*events.CreditAccountLiquidation{
				LiquidatorAccountID: "3",
				LiquidateeAccountID: "2",
				Bucket:              "deposit",
				DebtRepaid:          types.NewInt64Coin("uatom", 400),
				CollateralSeized:    types.NewInt64Coin("uosmo", 9_985),
				ProtocolFee:         types.NewInt64Coin("uosmo", 15),
				HealthFactor:        sdkmath.LegacyMustNewDecFromStr("0.933333333333333333"),
				Bonus:               sdkmath.LegacyMustNewDecFromStr("0.05"),
			}.Event(),
		},
	}
}

func TestJournalFollowsExecutor(t *testing.T) {
	j := setupJournal(t)
	h := apptest.New(t)
	h.App.Subscribe(j.Listener())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	user := apptest.Addr("journal-user")
	h.Fund(user, apptest.Coin(apptest.Osmo, 1_000))
	res := h.Exec(user, h.App.Addresses.RedBank, redbank.Deposit{}, apptest.Coin(apptest.Osmo, 1_000))

	cancel()
	require.NoError(t, <-done)

	rows, err := j.Events(context.Background(), indexer.EventFilter{Type: "redbank.", Sender: user})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	var deposit *indexer.EventRecord
	for i := range rows {
		require.Equal(t, res.TxHash, rows[i].TxHash)
		if rows[i].Type == events.TypeRedBankDeposit {
			deposit = &rows[i]
		}
	}
	require.NotNil(t, deposit)
	require.Equal(t, res.Height, deposit.Height)
	require.Contains(t, deposit.Attributes, apptest.Osmo)

	// Results committed after shutdown never block the executor.
	h.Fund(user, apptest.Coin(apptest.Osmo, 1))
	h.Exec(user, h.App.Addresses.RedBank, redbank.Deposit{}, apptest.Coin(apptest.Osmo, 1))
}

func TestJournalRecordsLiquidations(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, liquidationResult(10)))
	require.NoError(t, j.Record(ctx, liquidationResult(20)))
	require.NoError(t, j.Record(ctx, core.Result{TxHash: "empty", Height: 21}))

	all, err := j.Events(ctx, indexer.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, 0, all[0].Position)
	require.Equal(t, 1, all[1].Position)

	liqs, err := j.Liquidations(ctx, 15)
	require.NoError(t, err)
	require.Len(t, liqs, 1)
	liq := liqs[0]
	require.Equal(t, "tx-20", liq.TxHash)
	require.Equal(t, indexer.EngineCreditManager, liq.Engine)
	require.Equal(t, "3", liq.Liquidator)
	require.Equal(t, "2", liq.Liquidatee)
	require.Equal(t, "uatom", liq.DebtDenom)
	require.Equal(t, "400", liq.DebtAmount)
	require.Equal(t, "uosmo", liq.CollateralDenom)
	require.Equal(t, "9985", liq.CollateralAmount)
	require.Equal(t, "15uosmo", liq.ProtocolFee)
	require.Equal(t, "0.050000000000000000", liq.Bonus)
}

func TestJournalRejectsMalformedLiquidation(t *testing.T) {
	j := setupJournal(t)
	res := core.Result{TxHash: "bad", Height: 1, Events: []types.Event{{
		Type:       events.TypeRedBankLiquidation,
		Attributes: map[string]string{"debt_repaid": "lots", "collateral_seized": "1uosmo"},
	}}}
	require.Error(t, j.Record(context.Background(), res))

	rows, err := j.Events(context.Background(), indexer.EventFilter{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestExportLiquidationsParquet(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()
	for _, height := range []uint64{3, 7} {
		require.NoError(t, j.Record(ctx, liquidationResult(height)))
	}
	redbankLiq := core.Result{TxHash: "rb", Height: 9, Time: apptest.GenesisTime, Events: []types.Event{
		*events.RedBankLiquidation{
			Liquidator:       "alice",
			User:             "bob",
			DebtRepaid:       types.NewInt64Coin("uatom", 10),
			CollateralSeized: types.NewInt64Coin("uosmo", 26),
			ProtocolFee:      types.NewInt64Coin("uosmo", 1),
		}.Event(),
	}}
	require.NoError(t, j.Record(ctx, redbankLiq))

	var buf bytes.Buffer
	n, err := j.ExportLiquidations(ctx, &buf, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(buf.Bytes()), new(indexer.LiquidationRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 3, pr.GetNumRows())
	rows := make([]indexer.LiquidationRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(3), rows[0].Height)
	require.Equal(t, "tx-7", rows[1].TxHash)
	require.Equal(t, indexer.EngineRedBank, rows[2].Engine)
	require.Equal(t, "bob", rows[2].Liquidatee)
	require.Equal(t, "collateral", rows[2].Bucket)
	require.Equal(t, "26", rows[2].CollateralAmount)
}
