package models

import (
	"time"

	"gorm.io/gorm"
)

// Event kinds recorded in the activation history
const (
	KindAutoLaunch   = "auto"
	KindManualLaunch = "manual"
	KindToggle       = "toggle"
	KindTimeout      = "timeout"
	KindUpdate       = "update"
)

type ActivationEvent struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
	RunID          string         `gorm:"not null;index" json:"run_id"`
	Kind           string         `gorm:"not null;index" json:"kind"`
	Detail         string         `gorm:"not null;default:''" json:"detail"`
	Success        bool           `gorm:"not null;default:false" json:"success"`
	IdleSeconds    int            `gorm:"not null;default:0" json:"idle_seconds"`
	TimeoutSeconds int            `gorm:"not null;default:0" json:"timeout_seconds"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-" yaml:"-"`
}

type KindSummary struct {
	Kind       string `json:"kind"`
	EventCount int64  `json:"event_count"`
}

type History struct {
	Since       time.Time          `json:"since" yaml:"since"`
	Summaries   []KindSummary      `json:"summaries" yaml:"summaries"`
	Events      []*ActivationEvent `json:"events" yaml:"events"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
}
