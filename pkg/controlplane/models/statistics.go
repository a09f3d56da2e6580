package models

import "time"

// StatDateLayout is the key format of DailyStatistic.Date.
const StatDateLayout = "2006-01-02"

// DailyStatistic accumulates reconciliation counters for one UTC day.
type DailyStatistic struct {
	Date            string    `gorm:"primaryKey;type:varchar(10)" json:"date"`
	TotalSyncs      int64     `gorm:"not null;default:0" json:"total_syncs"`
	AutoSyncs       int64     `gorm:"not null;default:0" json:"auto_syncs"`
	ManualSyncs     int64     `gorm:"not null;default:0" json:"manual_syncs"`
	SweepSyncs      int64     `gorm:"not null;default:0" json:"sweep_syncs"`
	APISyncs        int64     `gorm:"not null;default:0" json:"api_syncs"`
	SuccessfulSyncs int64     `gorm:"not null;default:0" json:"successful_syncs"`
	FailedSyncs     int64     `gorm:"not null;default:0" json:"failed_syncs"`
	RolesAdded      int64     `gorm:"not null;default:0" json:"roles_added"`
	RolesRemoved    int64     `gorm:"not null;default:0" json:"roles_removed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the table name for DailyStatistic.
func (DailyStatistic) TableName() string {
	return "statistics"
}

// StatDate returns the statistics key for t.
func StatDate(t time.Time) string {
	return t.UTC().Format(StatDateLayout)
}

// StatsSummary aggregates statistics over a date range.
type StatsSummary struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	TotalSyncs      int64   `json:"total_syncs"`
	SuccessfulSyncs int64   `json:"successful_syncs"`
	FailedSyncs     int64   `json:"failed_syncs"`
	AutoSyncs       int64   `json:"auto_syncs"`
	ManualSyncs     int64   `json:"manual_syncs"`
	SweepSyncs      int64   `json:"sweep_syncs"`
	APISyncs        int64   `json:"api_syncs"`
	RolesAdded      int64   `json:"roles_added"`
	RolesRemoved    int64   `json:"roles_removed"`
	UniqueSubjects  int64   `json:"unique_subjects"`
	SuccessRate     float64 `json:"success_rate"`
}
