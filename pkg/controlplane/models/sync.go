package models

import "time"

// Trigger types recorded on sessions and audit log entries.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
	TriggerSweep  = "sweep"
	TriggerAPI    = "api"
)

// Audit log action types.
const (
	ActionSyncRequested = "sync_requested"
	ActionRoleAdded     = "role_added"
	ActionRoleRemoved   = "role_removed"
	ActionRoleFailed    = "role_failed"
	ActionSyncFailed    = "sync_failed"
	ActionSyncSuccess   = "sync_success"
)

// SyncSession is the immutable record of one reconciliation attempt.
type SyncSession struct {
	ID                  string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubjectID           uint64    `gorm:"index;not null" json:"subject_id,string"`
	TargetCommunityID   uint64    `gorm:"not null" json:"target_community_id,string"`
	TriggerType         string    `gorm:"type:varchar(16);index;not null" json:"trigger_type"`
	Success             bool      `gorm:"not null" json:"success"`
	DryRun              bool      `gorm:"not null" json:"dry_run"`
	State               string    `gorm:"type:varchar(32)" json:"state"`
	ErrorKind           string    `gorm:"type:varchar(64)" json:"error_kind,omitempty"`
	RolesAdded          []uint64  `gorm:"serializer:json;type:text" json:"roles_added"`
	RolesRemoved        []uint64  `gorm:"serializer:json;type:text" json:"roles_removed"`
	RolesFailed         []uint64  `gorm:"serializer:json;type:text" json:"roles_failed"`
	SourceCommunities   []uint64  `gorm:"serializer:json;type:text" json:"source_communities"`
	Errors              []string  `gorm:"serializer:json;type:text" json:"errors"`
	SourceRolesFound    int       `json:"source_roles_found"`
	TargetRolesComputed int       `json:"target_roles_computed"`
	DurationMs          int64     `json:"duration_ms"`
	StartedAt           time.Time `gorm:"index" json:"started_at"`
	CompletedAt         time.Time `json:"completed_at"`
}

// TableName returns the table name for SyncSession.
func (SyncSession) TableName() string {
	return "sync_sessions"
}

// TotalChanges returns the number of applied additions and removals.
func (s *SyncSession) TotalChanges() int {
	return len(s.RolesAdded) + len(s.RolesRemoved)
}

// SyncLog is one append-only audit line.
type SyncLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string    `gorm:"type:varchar(36);index" json:"session_id"`
	SubjectID    uint64    `gorm:"index;not null" json:"subject_id,string"`
	ActionType   string    `gorm:"type:varchar(32);index;not null" json:"action_type"`
	TriggerType  string    `gorm:"type:varchar(16)" json:"trigger_type"`
	RoleID       *uint64   `json:"role_id,omitempty,string"`
	CommunityID  *uint64   `json:"community_id,omitempty,string"`
	Success      bool      `json:"success"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for SyncLog.
func (SyncLog) TableName() string {
	return "sync_logs"
}

// SyncState is the per-subject aggregate of reconciliations against a target.
type SyncState struct {
	SubjectID         uint64    `gorm:"primaryKey;autoIncrement:false" json:"subject_id,string"`
	TargetCommunityID uint64    `gorm:"primaryKey;autoIncrement:false" json:"target_community_id,string"`
	LastSyncAt        time.Time `json:"last_sync_at"`
	LastSessionID     string    `gorm:"type:varchar(36)" json:"last_session_id"`
	LastSuccess       bool      `json:"last_success"`
	SyncCount         int64     `gorm:"not null;default:0" json:"sync_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for SyncState.
func (SyncState) TableName() string {
	return "sync_state"
}

// RoleAssignment records which source role produced a target role grant.
type RoleAssignment struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubjectID         uint64    `gorm:"uniqueIndex:idx_assignment;not null" json:"subject_id,string"`
	TargetCommunityID uint64    `gorm:"not null" json:"target_community_id,string"`
	TargetRoleID      uint64    `gorm:"uniqueIndex:idx_assignment;not null" json:"target_role_id,string"`
	SourceCommunityID uint64    `gorm:"uniqueIndex:idx_assignment;not null" json:"source_community_id,string"`
	SourceRoleID      uint64    `gorm:"uniqueIndex:idx_assignment;not null" json:"source_role_id,string"`
	AssignedAt        time.Time `json:"assigned_at"`
}

// TableName returns the table name for RoleAssignment.
func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// SyncRecord groups every row written for one reconciliation.
type SyncRecord struct {
	Session     SyncSession
	Logs        []SyncLog
	Assignments []RoleAssignment
	// Revoked lists target roles removed from the subject; their assignment
	// rows are deleted.
	Revoked []uint64
}
