package projects

import (
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
)

// ProjectFields carries per-field overrides for UpsertProject. A nil field keeps
// what is stored and a blank one clears it.
type ProjectFields struct {
	Name   *string `json:"name,omitempty"`
	Owner  *string `json:"owner,omitempty"`
	Status *string `json:"status,omitempty"`
	Note   *string `json:"note,omitempty"`
}

// ProjectResult reports the id of an upserted project.
type ProjectResult struct {
	ID      int64 `json:"id"`
	Created bool  `json:"created"`
}

// ProjectDTO is the project payload returned to clients.
type ProjectDTO struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewProjectDTO(p models.Project) ProjectDTO {
	return ProjectDTO{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Owner:     p.Owner,
		Status:    p.Status,
		Note:      p.Note,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// BomLineInput sets the required quantity of one part for a project.
type BomLineInput struct {
	ProjectCode string `json:"project_code"`
	MPN         string `json:"mpn"`
	ReqQty      int    `json:"req_qty"`
	Priority    *int   `json:"priority,omitempty"`
	Note        string `json:"note,omitempty"`
}

// BomLineRow is a BOM line joined with its part.
type BomLineRow struct {
	ID        int64     `gorm:"column:id" json:"id"`
	PartID    int64     `gorm:"column:part_id" json:"part_id"`
	MPN       string    `gorm:"column:mpn" json:"mpn"`
	PartName  string    `gorm:"column:part_name" json:"part_name"`
	ReqQty    int       `gorm:"column:req_qty" json:"req_qty"`
	Priority  int       `gorm:"column:priority" json:"priority"`
	Note      string    `gorm:"column:note" json:"note"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// ResourceInput links a document, repository or folder to a project.
type ResourceInput struct {
	ProjectCode  string `json:"project_code"`
	ResourceType string `json:"type"`
	Name         string `json:"name"`
	URI          string `json:"uri"`
	IsDir        bool   `json:"is_dir"`
	Tags         string `json:"tags,omitempty"`
	Note         string `json:"note,omitempty"`
	// NoCheck skips the local path existence check.
	NoCheck bool `json:"no_check,omitempty"`
}

// ResourceDTO is the resource payload returned to clients.
type ResourceDTO struct {
	ID           int64     `json:"id"`
	ResourceType string    `json:"type"`
	Name         string    `json:"name"`
	URI          string    `json:"uri"`
	IsDir        bool      `json:"is_dir"`
	Tags         string    `json:"tags,omitempty"`
	Note         string    `json:"note,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewResourceDTO(r models.ProjectResource) ResourceDTO {
	return ResourceDTO{
		ID:           r.ID,
		ResourceType: r.ResourceType,
		Name:         r.Name,
		URI:          r.URI,
		IsDir:        r.IsDir,
		Tags:         r.Tags,
		Note:         r.Note,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ResourceCheck is the reachability result for one resource.
type ResourceCheck struct {
	ID           int64  `json:"id"`
	ResourceType string `json:"type"`
	Name         string `json:"name"`
	URI          string `json:"uri"`
	OK           bool   `json:"ok"`
	Detail       string `json:"detail"`
}
