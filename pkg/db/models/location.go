package models

import "time"

// Location is a storage slot, e.g. LAB-A1-S01-P03.
type Location struct {
	Code      string    `gorm:"column:code;primaryKey"`
	Note      string    `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Location) TableName() string { return "locations" }
