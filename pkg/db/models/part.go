package models

import "time"

// Part is a catalog entry keyed by manufacturer part number.
type Part struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	MPN       string    `gorm:"column:mpn;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Category  string    `gorm:"column:category;not null;default:''"`
	Package   string    `gorm:"column:package;not null;default:''"`
	Params    string    `gorm:"column:params;not null;default:''"`
	Unit      string    `gorm:"column:unit;not null;default:pcs"`
	URL       string    `gorm:"column:url;not null;default:''"`
	Datasheet string    `gorm:"column:datasheet;not null;default:''"`
	Note      string    `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Part) TableName() string { return "parts" }
