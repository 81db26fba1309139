package models

import "time"

type Project struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Owner     string    `gorm:"column:owner;not null;default:''"`
	Status    string    `gorm:"column:status;not null;default:active"`
	Note      string    `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Project) TableName() string { return "projects" }

// BomLine is a project's demand for a part. It reserves nothing.
type BomLine struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	ProjectID int64     `gorm:"column:project_id;not null"`
	PartID    int64     `gorm:"column:part_id;not null"`
	ReqQty    int       `gorm:"column:req_qty;not null"`
	Priority  int       `gorm:"column:priority;not null;default:2"`
	Note      string    `gorm:"column:note;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BomLine) TableName() string { return "project_bom_lines" }

// ProjectResource links a project to a document, repository or folder.
type ProjectResource struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	ProjectID    int64     `gorm:"column:project_id;not null"`
	ResourceType string    `gorm:"column:resource_type;not null"`
	Name         string    `gorm:"column:name;not null;default:''"`
	URI          string    `gorm:"column:uri;not null"`
	IsDir        bool      `gorm:"column:is_dir;not null;default:false"`
	Tags         string    `gorm:"column:tags;not null;default:''"`
	Note         string    `gorm:"column:note;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProjectResource) TableName() string { return "project_resources" }
