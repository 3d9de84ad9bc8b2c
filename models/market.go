package models

import (
	"time"

	"gorm.io/gorm"
)

// Bar represents one day's open/high/low/close/volume for a symbol.
// Bars are immutable once recorded.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SameDay reports whether two bars belong to the same calendar day.
func (b Bar) SameDay(other Bar) bool {
	y1, m1, d1 := b.Date.Date()
	y2, m2, d2 := other.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Closes extracts the close series from a date-ascending bar slice.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series from a date-ascending bar slice.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// TrackedStock is a symbol followed by the update loop and shown in the
// portfolio views.
type TrackedStock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MigrateMarketModels runs database migrations for market-related models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(&TrackedStock{})
}
