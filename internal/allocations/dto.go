package allocations

import (
	"github.com/angelmondragon/labstock-backend/internal/stock"
)

// ReserveInput claims stock for a project. An empty Location reserves
// against the part's total stock.
type ReserveInput struct {
	ProjectCode string `json:"project_code"`
	MPN         string `json:"mpn"`
	Location    string `json:"location,omitempty"`
	Qty         int    `json:"qty"`
	Note        string `json:"note,omitempty"`
	Operator    string `json:"operator,omitempty"`
}

// Availability is the current coverage of a part plus its stock lines.
type Availability struct {
	MPN      string         `json:"mpn"`
	Coverage stock.Coverage `json:"coverage"`
	Levels   []stock.Level  `json:"levels"`
}
