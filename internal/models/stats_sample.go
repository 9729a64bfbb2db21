// Package models defines the database models for the stats history.
package models

import "time"

// StatsSample is one poll cycle reduced to the figures the dashboard charts.
type StatsSample struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Chain         string    `gorm:"size:32;index" json:"chain"`
	Blocks        int64     `gorm:"index" json:"blocks"`
	BestBlockHash string    `gorm:"size:128" json:"bestBlockHash"`
	Difficulty    float64   `json:"difficulty"`
	NetworkHashPS float64   `json:"networkHashPs"`
	Connections   int       `json:"connections"`
	SampledAt     time.Time `gorm:"index;not null" json:"sampledAt"`
	CreatedAt     time.Time `json:"-"`
}
