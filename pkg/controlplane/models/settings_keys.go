package models

// Setting keys read by the runtime settings watcher.
const (
	SettingAutoSyncEnabled = "sync.auto_enabled"
)
