package payloads

import (
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"github.com/google/uuid"
)

// StockMovementEvent describes a committed change to on-hand stock.
type StockMovementEvent struct {
	DocumentID   int64               `json:"document_id"`
	TxnID        int64               `json:"txn_id"`
	DocType      enums.LedgerDocType `json:"doc_type"`
	PartID       int64               `json:"part_id"`
	MPN          string              `json:"mpn"`
	FromLocation string              `json:"from_location,omitempty"`
	ToLocation   string              `json:"to_location,omitempty"`
	Qty          int                 `json:"qty"`
	ProjectCode  string              `json:"project_code,omitempty"`
	Ref          string              `json:"ref,omitempty"`
}

// AllocationEvent describes an allocation state transition.
type AllocationEvent struct {
	AllocationID int64                  `json:"allocation_id"`
	DocumentID   int64                  `json:"document_id"`
	ProjectID    int64                  `json:"project_id"`
	ProjectCode  string                 `json:"project_code,omitempty"`
	PartID       int64                  `json:"part_id"`
	MPN          string                 `json:"mpn,omitempty"`
	Location     string                 `json:"location,omitempty"`
	Qty          int                    `json:"qty"`
	Status       enums.AllocationStatus `json:"status"`
}

// ImportCompletedEvent summarizes a finished import batch.
type ImportCompletedEvent struct {
	BatchID   uuid.UUID        `json:"batch_id"`
	Mode      enums.ImportMode `json:"mode"`
	Total     int              `json:"total"`
	Skipped   int              `json:"skipped"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Committed bool             `json:"committed"`
}
