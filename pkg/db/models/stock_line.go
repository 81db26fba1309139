package models

import "time"

// StockLine holds the on-hand quantity of one part at one location.
type StockLine struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	PartID    int64     `gorm:"column:part_id;not null"`
	Location  string    `gorm:"column:location;not null"`
	Qty       int       `gorm:"column:qty;not null"`
	Condition string    `gorm:"column:condition;not null;default:new"`
	Note      string    `gorm:"column:note;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockLine) TableName() string { return "stock_lines" }
