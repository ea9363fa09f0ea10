package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// Ledger represents the ledgers table.
type Ledger struct {
	LedgerID  string    `gorm:"primaryKey"`
	OwnerName string    `gorm:"not null"`
	OwnerID   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Ledger) TableName() string { return "ledgers" }

// Product mirrors the products table. The last_* columns are null when nothing is refundable.
type Product struct {
	LedgerID       string `gorm:"primaryKey"`
	ProductIndex   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name           string `gorm:"not null"`
	Stock          int64  `gorm:"not null"`
	UnitPrice      int64  `gorm:"not null"`
	TotalPurchased int64  `gorm:"not null"`
	LastBuyer      *string
	LastQuantity   *int64
	LastAmountPaid *int64
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Transfer mirrors the transfers table.
type Transfer struct {
	TransferID     string         `gorm:"primaryKey"`
	LedgerID       string         `gorm:"not null;index:idx_transfers_ledger_created,priority:1"`
	Kind           string         `gorm:"not null"`
	FromCaller     string         `gorm:"not null;index"`
	ToCaller       string         `gorm:"not null;index"`
	Amount         int64          `gorm:"not null"`
	ProductIndex   int64          `gorm:"not null"`
	Quantity       int64          `gorm:"not null"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedUnixUTC int64          `gorm:"not null;index:idx_transfers_ledger_created,priority:2"`
}

func (Transfer) TableName() string { return "transfers" }

type sqlSum struct {
	Total int64
}
