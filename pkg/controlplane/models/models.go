package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&RoleMapping{},
		&SyncSession{},
		&SyncLog{},
		&SyncState{},
		&RoleAssignment{},
		&DailyStatistic{},
		&Setting{},
	}
}
