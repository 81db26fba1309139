package models

import (
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/enums"
)

// Allocation reserves a quantity of a part for a project. Location is nil
// for a project-wide reservation that is not tied to a storage slot.
type Allocation struct {
	ID        int64                  `gorm:"column:id;primaryKey"`
	ProjectID int64                  `gorm:"column:project_id;not null"`
	PartID    int64                  `gorm:"column:part_id;not null"`
	Location  *string                `gorm:"column:location"`
	Qty       int                    `gorm:"column:qty;not null"`
	Status    enums.AllocationStatus `gorm:"column:status;not null;default:reserved"`
	Note      string                 `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Allocation) TableName() string { return "allocations" }
