// Package models contains the database model definitions.
package models

import (
	"time"
)

// Controller is the persisted history of one Art-Net controller that polled
// the node. Unlike the in-memory directory it survives restarts.
// Table: controllers
type Controller struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	IP        string    `gorm:"column:ip;uniqueIndex" json:"ip"`
	Family    string    `gorm:"column:family" json:"family"`
	FirstSeen time.Time `gorm:"column:first_seen" json:"firstSeen"`
	LastPoll  time.Time `gorm:"column:last_poll;index" json:"lastPoll"`
	PollCount int64     `gorm:"column:poll_count;default:0" json:"pollCount"`

	DiagnosticUnicast bool `gorm:"column:diagnostic_unicast" json:"diagnosticUnicast"`
	DiagnosticEnable  bool `gorm:"column:diagnostic_enable" json:"diagnosticEnable"`
	Unilateral        bool `gorm:"column:unilateral" json:"unilateral"`
	Priority          int  `gorm:"column:priority" json:"priority"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Controller) TableName() string { return "controllers" }

// All returns every model, in migration order.
func All() []interface{} {
	return []interface{}{&Controller{}}
}
