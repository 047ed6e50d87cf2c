package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Liquidation engines.
const (
	EngineRedBank       = "redbank"
	EngineCreditManager = "creditmanager"
)

// EventRecord is one event of a committed transaction. Attributes holds the
// event attributes as a JSON object.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash     string    `gorm:"index;not null"`
	Height     uint64    `gorm:"index"`
	BlockTime  time.Time `gorm:"index"`
	Sender     string    `gorm:"index"`
	Contract   string
	Position   int
	Type       string `gorm:"index;not null"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Liquidation is a liquidation of either engine. Liquidator and Liquidatee
// are addresses for the red bank and account ids for the credit manager.
type Liquidation struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash           string    `gorm:"index;not null"`
	Height           uint64    `gorm:"index"`
	BlockTime        time.Time
	Engine           string `gorm:"index"`
	Liquidator       string
	Liquidatee       string `gorm:"index"`
	Bucket           string
	DebtDenom        string
	DebtAmount       string
	CollateralDenom  string
	CollateralAmount string
	ProtocolFee      string
	HealthFactor     string
	Bonus            string
	CreatedAt        time.Time
}

// AutoMigrate performs all schema migrations for the journal.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &Liquidation{})
}
