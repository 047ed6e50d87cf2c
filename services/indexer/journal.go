// Package indexer keeps a queryable journal of committed protocol events and
// exports liquidations for offline analysis.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"creditchain/core"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/observability"
	"creditchain/observability/logging"
)

// DefaultQueueSize is the number of committed transactions buffered between
// the executor and the database writer.
const DefaultQueueSize = 1024

// Journal persists committed transactions. Results arrive through Listener
// and are written by Run on its own goroutine, so the executor never waits on
// the database unless the queue is full.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger

	queue     chan core.Result
	done      chan struct{}
	closeOnce sync.Once
}

// Open connects to driver ("postgres" or "sqlite") and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", logging.RedactDSN(dsn), err)
	}
	return New(db, log, DefaultQueueSize)
}

// New wraps an open database.
func New(db *gorm.DB, log *slog.Logger, queueSize int) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Journal{
		db:     db,
		logger: log.With("component", "indexer"),
		queue:  make(chan core.Result, queueSize),
		done:   make(chan struct{}),
	}, nil
}

// Listener returns the executor subscription. It blocks while the queue is
// full and drops results once the journal has stopped.
func (j *Journal) Listener() func(core.Result) {
	return func(res core.Result) {
		select {
		case j.queue <- res:
		case <-j.done:
			observability.Events().RecordDropped("indexer", "stopped")
			j.logger.Warn("journal stopped, result dropped", "tx_hash", res.TxHash, "height", res.Height)
		}
	}
}

// Run writes queued results until ctx is cancelled, then flushes what is
// already queued and returns nil.
func (j *Journal) Run(ctx context.Context) error {
	defer j.stop()
	for {
		select {
		case res := <-j.queue:
			j.write(ctx, res)
		case <-ctx.Done():
			for {
				select {
				case res := <-j.queue:
					j.write(context.Background(), res)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, res core.Result) {
	if err := j.Record(ctx, res); err != nil {
		j.logger.Error("journal write failed", "tx_hash", res.TxHash, "height", res.Height, "error", err)
	}
}

func (j *Journal) stop() {
	j.closeOnce.Do(func() { close(j.done) })
}

// Record writes one committed transaction and the liquidations it contains
// in a single database transaction.
func (j *Journal) Record(ctx context.Context, res core.Result) error {
	if len(res.Events) == 0 {
		return nil
	}
	blockTime := time.Unix(int64(res.Time), 0).UTC()
	records := make([]EventRecord, 0, len(res.Events))
	var liquidations []Liquidation
	for i, ev := range res.Events {
		attrs, err := json.Marshal(ev.Attributes)
		if err != nil {
			return fmt.Errorf("indexer: encode attributes: %w", err)
		}
		records = append(records, EventRecord{
			ID:         uuid.New(),
			TxHash:     res.TxHash,
			Height:     res.Height,
			BlockTime:  blockTime,
			Sender:     res.Sender,
			Contract:   res.Contract,
			Position:   i,
			Type:       ev.Type,
			Attributes: string(attrs),
		})
		liq, ok, err := liquidationFrom(ev)
		if err != nil {
			return err
		}
		if ok {
			liq.ID = uuid.New()
			liq.TxHash = res.TxHash
			liq.Height = res.Height
			liq.BlockTime = blockTime
			liquidations = append(liquidations, liq)
		}
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("indexer: insert events: %w", err)
		}
		if len(liquidations) > 0 {
			if err := tx.Create(&liquidations).Error; err != nil {
				return fmt.Errorf("indexer: insert liquidations: %w", err)
			}
		}
		return nil
	})
}

func liquidationFrom(ev types.Event) (Liquidation, bool, error) {
	var liq Liquidation
	attrs := ev.Attributes
	switch ev.Type {
	case events.TypeRedBankLiquidation:
		liq.Engine = EngineRedBank
		liq.Liquidator = attrs["liquidator"]
		liq.Liquidatee = attrs["user"]
		liq.Bucket = "collateral"
	case events.TypeCreditAccountLiquidation:
		liq.Engine = EngineCreditManager
		liq.Liquidator = attrs["liquidator_account_id"]
		liq.Liquidatee = attrs["liquidatee_account_id"]
		liq.Bucket = attrs["bucket"]
	default:
		return liq, false, nil
	}
	debt, err := types.ParseCoin(attrs["debt_repaid"])
	if err != nil {
		return liq, false, fmt.Errorf("indexer: %s debt_repaid: %w", ev.Type, err)
	}
	seized, err := types.ParseCoin(attrs["collateral_seized"])
	if err != nil {
		return liq, false, fmt.Errorf("indexer: %s collateral_seized: %w", ev.Type, err)
	}
	liq.DebtDenom, liq.DebtAmount = debt.Denom, debt.Amount.String()
	liq.CollateralDenom, liq.CollateralAmount = seized.Denom, seized.Amount.String()
	liq.ProtocolFee = attrs["protocol_fee"]
	liq.HealthFactor = attrs["health_factor"]
	liq.Bonus = attrs["bonus"]
	return liq, true, nil
}

// EventFilter narrows Events. Zero fields match everything; Type matches
// exactly or, when it ends in ".", as a prefix.
type EventFilter struct {
	Type       string
	Sender     string
	FromHeight uint64
	Limit      int
}

// Events returns journal rows in commit order.
func (j *Journal) Events(ctx context.Context, f EventFilter) ([]EventRecord, error) {
	q := j.db.WithContext(ctx).Model(&EventRecord{}).Where("height >= ?", f.FromHeight)
	if t := strings.TrimSpace(f.Type); t != "" {
		if strings.HasSuffix(t, ".") {
			q = q.Where("type LIKE ?", t+"%")
		} else {
			q = q.Where("type = ?", t)
		}
	}
	if f.Sender != "" {
		q = q.Where("sender = ?", f.Sender)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []EventRecord
	if err := q.Order("height asc, created_at asc, position asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: query events: %w", err)
	}
	return out, nil
}

// Liquidations returns liquidations at or above fromHeight, oldest first.
func (j *Journal) Liquidations(ctx context.Context, fromHeight uint64) ([]Liquidation, error) {
	var out []Liquidation
	err := j.db.WithContext(ctx).
		Where("height >= ?", fromHeight).
		Order("height asc, created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: query liquidations: %w", err)
	}
	return out, nil
}

// Close stops accepting results and closes the database.
func (j *Journal) Close() error {
	j.stop()
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
