package imports

import (
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/google/uuid"
)

// Row is one already-parsed movement from an external source. Locator
// points back at the source, e.g. "StockIn!7".
type Row struct {
	Locator     string `json:"locator,omitempty"`
	Type        string `json:"type"`
	ProjectCode string `json:"project_code,omitempty"`
	MPN         string `json:"mpn"`
	Location    string `json:"location"`
	Qty         int    `json:"qty"`
	Condition   string `json:"condition,omitempty"`
	Note        string `json:"note,omitempty"`
	Ref         string `json:"ref,omitempty"`
	Operator    string `json:"operator,omitempty"`
}

func (r Row) blank() bool {
	return strings.TrimSpace(r.Type) == "" && strings.TrimSpace(r.MPN) == ""
}

// Failure records why one row was not applied. Index is the 1-based
// position of the row in the batch.
type Failure struct {
	Index   int            `json:"index"`
	Locator string         `json:"locator,omitempty"`
	Code    pkgerrors.Code `json:"code"`
	Error   string         `json:"error"`
	Values  Row            `json:"values"`
}

// Report summarises a batch.
type Report struct {
	BatchID   uuid.UUID        `json:"batch_id"`
	Mode      enums.ImportMode `json:"mode"`
	Total     int              `json:"total"`
	Skipped   int              `json:"skipped"`
	Succeeded int              `json:"succeeded"`
	Committed bool             `json:"committed"`
	Failures  []Failure        `json:"failures"`
}
