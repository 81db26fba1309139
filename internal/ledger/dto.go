package ledger

import (
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Filter narrows ledger document queries.
type Filter struct {
	ProjectCode  string
	MPN          string
	DocType      enums.LedgerDocType
	AllocationID *int64
	Since        time.Time
	Until        time.Time
	Limit        int
	Cursor       string
	BeforeID     int64
}

// TxnFilter narrows inventory txn queries.
type TxnFilter struct {
	ProjectCode string
	MPN         string
	Location    string
	TxnType     enums.TxnType
	Since       time.Time
	Until       time.Time
	Limit       int
	Cursor      string
	BeforeID    int64
}

// Entry is one ledger line joined with its document, part and project.
type Entry struct {
	DocumentID   int64               `gorm:"column:document_id" json:"document_id"`
	DocType      enums.LedgerDocType `gorm:"column:doc_type" json:"doc_type"`
	CreatedAt    time.Time           `gorm:"column:created_at" json:"created_at"`
	AllocationID *int64              `gorm:"column:allocation_id" json:"allocation_id,omitempty"`
	ProjectCode  *string             `gorm:"column:project_code" json:"project_code,omitempty"`
	MPN          string              `gorm:"column:mpn" json:"mpn"`
	PartName     string              `gorm:"column:part_name" json:"part_name"`
	Qty          int                 `gorm:"column:qty" json:"qty"`
	UnitCost     decimal.NullDecimal `gorm:"column:unit_cost" json:"unit_cost"`
	FromLocation *string             `gorm:"column:from_location" json:"from_location,omitempty"`
	ToLocation   *string             `gorm:"column:to_location" json:"to_location,omitempty"`
	Ref          string              `gorm:"column:ref" json:"ref,omitempty"`
	Operator     string              `gorm:"column:operator" json:"operator,omitempty"`
	Note         string              `gorm:"column:note" json:"note,omitempty"`
	LineNote     string              `gorm:"column:line_note" json:"line_note,omitempty"`
}

// TxnEntry is one inventory txn line joined with its txn header.
type TxnEntry struct {
	TxnID       int64         `gorm:"column:txn_id" json:"txn_id"`
	TxnType     enums.TxnType `gorm:"column:txn_type" json:"txn_type"`
	CreatedAt   time.Time     `gorm:"column:created_at" json:"created_at"`
	ProjectCode *string       `gorm:"column:project_code" json:"project_code,omitempty"`
	Ref         string        `gorm:"column:ref" json:"ref,omitempty"`
	Operator    string        `gorm:"column:operator" json:"operator,omitempty"`
	Note        string        `gorm:"column:note" json:"note,omitempty"`
	PartID      int64         `gorm:"column:part_id" json:"part_id"`
	MPNSnapshot string        `gorm:"column:mpn_snapshot" json:"mpn"`
	Location    string        `gorm:"column:location" json:"location"`
	QtyDelta    int           `gorm:"column:qty_delta" json:"qty_delta"`
	Condition   string        `gorm:"column:condition" json:"condition,omitempty"`
	LineNote    string        `gorm:"column:line_note" json:"line_note,omitempty"`
}
