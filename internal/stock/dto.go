package stock

import (
	"github.com/shopspring/decimal"
)

// InInput receives stock into a location.
type InInput struct {
	MPN         string              `json:"mpn"`
	Location    string              `json:"location"`
	Qty         int                 `json:"qty"`
	Condition   string              `json:"condition,omitempty"`
	ProjectCode string              `json:"project_code,omitempty"`
	Ref         string              `json:"ref,omitempty"`
	Operator    string              `json:"operator,omitempty"`
	Note        string              `json:"note,omitempty"`
	UnitCost    decimal.NullDecimal `json:"unit_cost"`
}

// OutInput issues stock from a location.
type OutInput struct {
	MPN         string `json:"mpn"`
	Location    string `json:"location"`
	Qty         int    `json:"qty"`
	ProjectCode string `json:"project_code,omitempty"`
	Ref         string `json:"ref,omitempty"`
	Operator    string `json:"operator,omitempty"`
	Note        string `json:"note,omitempty"`
}

// MoveInput transfers stock between two locations.
type MoveInput struct {
	MPN          string `json:"mpn"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	Qty          int    `json:"qty"`
	Ref          string `json:"ref,omitempty"`
	Operator     string `json:"operator,omitempty"`
	Note         string `json:"note,omitempty"`
}

// AdjustInput corrects a stock line. Exactly one of Add or Sub is positive.
type AdjustInput struct {
	MPN      string `json:"mpn"`
	Location string `json:"location"`
	Add      int    `json:"add,omitempty"`
	Sub      int    `json:"sub,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Operator string `json:"operator,omitempty"`
	Note     string `json:"note"`
}

// Level is the quantity of a part at one location after a movement.
type Level struct {
	Location  string `json:"location"`
	Qty       int    `json:"qty"`
	Condition string `json:"condition"`
}

// MovementResult identifies the ledger records a movement wrote.
type MovementResult struct {
	DocumentID int64   `json:"document_id"`
	TxnID      int64   `json:"txn_id"`
	PartID     int64   `json:"part_id"`
	Levels     []Level `json:"levels"`
}
