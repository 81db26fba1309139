package models

import (
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/enums"
)

// MaterialStatus is one row of v_material_status: a BOM line with its
// coverage numbers. ReservedAllProjects sums only allocations still in the
// reserved state. Consumed allocations already left stock through an OUT
// entry, so AvailableStock is TotalStock minus open reservations and
// consumption is not subtracted twice. ReservedForProject does include the
// project's consumed quantity, since that counts toward its requirement.
type MaterialStatus struct {
	ProjectID            int64  `gorm:"column:project_id" json:"project_id"`
	ProjectCode          string `gorm:"column:project_code" json:"project_code"`
	PartID               int64  `gorm:"column:part_id" json:"part_id"`
	MPN                  string `gorm:"column:mpn" json:"mpn"`
	PartName             string `gorm:"column:part_name" json:"part_name"`
	Category             string `gorm:"column:category" json:"category"`
	Package              string `gorm:"column:package" json:"package"`
	ReqQty               int    `gorm:"column:req_qty" json:"req_qty"`
	Priority             int    `gorm:"column:priority" json:"priority"`
	TotalStock           int    `gorm:"column:total_stock" json:"total_stock"`
	ReservedAllProjects  int    `gorm:"column:reserved_all_projects" json:"reserved_all_projects"`
	AvailableStock       int    `gorm:"column:available_stock" json:"available_stock"`
	ReservedForProject   int    `gorm:"column:reserved_for_project" json:"reserved_for_project"`
	ConsumedForProject   int    `gorm:"column:consumed_for_project" json:"consumed_for_project"`
	RemainingToReserve   int    `gorm:"column:remaining_to_reserve" json:"remaining_to_reserve"`
	ShortageIfReserveNow int    `gorm:"column:shortage_if_reserve_now" json:"shortage_if_reserve_now"`
}

func (MaterialStatus) TableName() string { return "v_material_status" }

// AllocationDetail is one row of v_allocation_detail.
type AllocationDetail struct {
	AllocationID    int64                  `gorm:"column:allocation_id" json:"allocation_id"`
	ProjectID       int64                  `gorm:"column:project_id" json:"project_id"`
	ProjectCode     string                 `gorm:"column:project_code" json:"project_code"`
	ProjectName     string                 `gorm:"column:project_name" json:"project_name"`
	PartID          int64                  `gorm:"column:part_id" json:"part_id"`
	MPN             string                 `gorm:"column:mpn" json:"mpn"`
	PartName        string                 `gorm:"column:part_name" json:"part_name"`
	Location        *string                `gorm:"column:location" json:"location,omitempty"`
	Qty             int                    `gorm:"column:qty" json:"qty"`
	Status          enums.AllocationStatus `gorm:"column:status" json:"status"`
	Note            string                 `gorm:"column:note" json:"note"`
	CreatedAt       time.Time              `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time              `gorm:"column:updated_at" json:"updated_at"`
	StockAtLocation int                    `gorm:"column:stock_at_location" json:"stock_at_location"`
}

func (AllocationDetail) TableName() string { return "v_allocation_detail" }

// ProjectOverview is one row of v_project_overview.
type ProjectOverview struct {
	ProjectID          int64  `gorm:"column:project_id" json:"project_id"`
	Code               string `gorm:"column:code" json:"code"`
	Name               string `gorm:"column:name" json:"name"`
	Owner              string `gorm:"column:owner" json:"owner"`
	Status             string `gorm:"column:status" json:"status"`
	BomLines           int    `gorm:"column:bom_lines" json:"bom_lines"`
	BomTotalReq        int    `gorm:"column:bom_total_req" json:"bom_total_req"`
	AllocLines         int    `gorm:"column:alloc_lines" json:"alloc_lines"`
	AllocTotalReserved int    `gorm:"column:alloc_total_reserved" json:"alloc_total_reserved"`
	ResourceCount      int    `gorm:"column:resource_count" json:"resource_count"`
}

func (ProjectOverview) TableName() string { return "v_project_overview" }
