package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/labstock-backend/pkg/enums"
)

// LedgerDocument is an immutable record of one stock-affecting event.
type LedgerDocument struct {
	ID           int64               `gorm:"column:id;primaryKey"`
	DocType      enums.LedgerDocType `gorm:"column:doc_type;not null"`
	ProjectID    *int64              `gorm:"column:project_id"`
	AllocationID *int64              `gorm:"column:allocation_id"`
	FromLocation *string             `gorm:"column:from_location"`
	ToLocation   *string             `gorm:"column:to_location"`
	Ref          string              `gorm:"column:ref;not null;default:''"`
	Operator     string              `gorm:"column:operator;not null;default:''"`
	Note         string              `gorm:"column:note;not null;default:''"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	Lines        []LedgerLine        `gorm:"foreignKey:DocumentID"`
}

func (LedgerDocument) TableName() string { return "ledger_documents" }

type LedgerLine struct {
	ID         int64               `gorm:"column:id;primaryKey"`
	DocumentID int64               `gorm:"column:document_id;not null"`
	PartID     int64               `gorm:"column:part_id;not null"`
	Qty        int                 `gorm:"column:qty;not null"`
	UnitCost   decimal.NullDecimal `gorm:"column:unit_cost;type:numeric(14,4)"`
	Note       string              `gorm:"column:note;not null;default:''"`
}

func (LedgerLine) TableName() string { return "ledger_lines" }

// InventoryTxn is the coarse batch-oriented movement log kept alongside the ledger.
type InventoryTxn struct {
	ID        int64              `gorm:"column:id;primaryKey"`
	TxnType   enums.TxnType      `gorm:"column:txn_type;not null"`
	ProjectID *int64             `gorm:"column:project_id"`
	Ref       string             `gorm:"column:ref;not null;default:''"`
	Operator  string             `gorm:"column:operator;not null;default:''"`
	Note      string             `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	Lines     []InventoryTxnLine `gorm:"foreignKey:TxnID"`
}

func (InventoryTxn) TableName() string { return "inventory_txns" }

// InventoryTxnLine carries a signed delta and the mpn as it read at write time.
type InventoryTxnLine struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	TxnID       int64  `gorm:"column:txn_id;not null"`
	PartID      int64  `gorm:"column:part_id;not null"`
	MPNSnapshot string `gorm:"column:mpn_snapshot;not null"`
	Location    string `gorm:"column:location;not null"`
	QtyDelta    int    `gorm:"column:qty_delta;not null"`
	Condition   string `gorm:"column:condition;not null;default:''"`
	Note        string `gorm:"column:note;not null;default:''"`
}

func (InventoryTxnLine) TableName() string { return "inventory_txn_lines" }
