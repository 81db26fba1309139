package catalog

import (
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
)

// PartFields carries per-field overrides for UpsertPart. A nil field keeps
// what is stored and a blank one clears it.
type PartFields struct {
	Name      *string `json:"name,omitempty"`
	Category  *string `json:"category,omitempty"`
	Package   *string `json:"package,omitempty"`
	Params    *string `json:"params,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	URL       *string `json:"url,omitempty"`
	Datasheet *string `json:"datasheet,omitempty"`
	Note      *string `json:"note,omitempty"`
}

// PartResult reports the id of an upserted part.
type PartResult struct {
	ID      int64 `json:"id"`
	Created bool  `json:"created"`
}

// PartDTO is the part payload returned to clients.
type PartDTO struct {
	ID        int64     `json:"id"`
	MPN       string    `json:"mpn"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Package   string    `json:"package"`
	Params    string    `json:"params"`
	Unit      string    `json:"unit"`
	URL       string    `json:"url,omitempty"`
	Datasheet string    `json:"datasheet,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationDTO is the location payload returned to clients.
type LocationDTO struct {
	Code      string    `json:"code"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// CabinetSpec describes one cabinet of a room being provisioned.
type CabinetSpec struct {
	Code    string `json:"code"`
	Shelves int    `json:"shelves"`
	Note    string `json:"note,omitempty"`
}

// ProvisionInput describes a room's location code space.
type ProvisionInput struct {
	Room              string        `json:"room"`
	Cabinets          []CabinetSpec `json:"cabinets"`
	PositionsPerShelf int           `json:"positions_per_shelf"`
	OverwriteNote     bool          `json:"overwrite_note"`
}

func NewPartDTO(p models.Part) PartDTO {
	return PartDTO{
		ID:        p.ID,
		MPN:       p.MPN,
		Name:      p.Name,
		Category:  p.Category,
		Package:   p.Package,
		Params:    p.Params,
		Unit:      p.Unit,
		URL:       p.URL,
		Datasheet: p.Datasheet,
		Note:      p.Note,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func NewLocationDTO(l models.Location) LocationDTO {
	return LocationDTO{Code: l.Code, Note: l.Note, CreatedAt: l.CreatedAt}
}
