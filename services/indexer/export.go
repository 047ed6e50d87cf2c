package indexer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// LiquidationRow is the parquet schema of an exported liquidation. Amounts
// stay decimal strings since they can exceed 64 bits.
type LiquidationRow struct {
	TxHash           string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Height           int64  `parquet:"name=height, type=INT64"`
	BlockTime        string `parquet:"name=block_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	Engine           string `parquet:"name=engine, type=BYTE_ARRAY, convertedtype=UTF8"`
	Liquidator       string `parquet:"name=liquidator, type=BYTE_ARRAY, convertedtype=UTF8"`
	Liquidatee       string `parquet:"name=liquidatee, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bucket           string `parquet:"name=bucket, type=BYTE_ARRAY, convertedtype=UTF8"`
	DebtDenom        string `parquet:"name=debt_denom, type=BYTE_ARRAY, convertedtype=UTF8"`
	DebtAmount       string `parquet:"name=debt_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	CollateralDenom  string `parquet:"name=collateral_denom, type=BYTE_ARRAY, convertedtype=UTF8"`
	CollateralAmount string `parquet:"name=collateral_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProtocolFee      string `parquet:"name=protocol_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	HealthFactor     string `parquet:"name=health_factor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bonus            string `parquet:"name=bonus, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func rowFrom(l Liquidation) *LiquidationRow {
	return &LiquidationRow{
		TxHash:           l.TxHash,
		Height:           int64(l.Height),
		BlockTime:        l.BlockTime.UTC().Format(time.RFC3339),
		Engine:           l.Engine,
		Liquidator:       l.Liquidator,
		Liquidatee:       l.Liquidatee,
		Bucket:           l.Bucket,
		DebtDenom:        l.DebtDenom,
		DebtAmount:       l.DebtAmount,
		CollateralDenom:  l.CollateralDenom,
		CollateralAmount: l.CollateralAmount,
		ProtocolFee:      l.ProtocolFee,
		HealthFactor:     l.HealthFactor,
		Bonus:            l.Bonus,
	}
}

// ExportLiquidations writes every liquidation at or above fromHeight to w as
// a snappy-compressed parquet file and returns the row count.
func (j *Journal) ExportLiquidations(ctx context.Context, w io.Writer, fromHeight uint64) (int, error) {
	liquidations, err := j.Liquidations(ctx, fromHeight)
	if err != nil {
		return 0, err
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(LiquidationRow), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, l := range liquidations {
		if err := pw.Write(rowFrom(l)); err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("indexer: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("indexer: parquet finish: %w", err)
	}
	j.logger.Info("liquidations exported", "rows", len(liquidations), "from_height", fromHeight)
	return len(liquidations), nil
}
