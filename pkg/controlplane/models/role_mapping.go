package models

import (
	"errors"
	"fmt"
	"time"
)

// RoleMapping translates a role held on a source community into a role granted
// on the target community.
type RoleMapping struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SourceCommunityID uint64    `gorm:"index:idx_mapping_source;not null" json:"source_community_id,string"`
	SourceRoleID      uint64    `gorm:"index:idx_mapping_source;not null" json:"source_role_id,string"`
	TargetCommunityID uint64    `gorm:"not null" json:"target_community_id,string"`
	TargetRoleID      uint64    `gorm:"index;not null" json:"target_role_id,string"`
	Description       string    `gorm:"type:text" json:"description"`
	Enabled           bool      `gorm:"not null" json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for RoleMapping.
func (RoleMapping) TableName() string {
	return "role_mappings"
}

// String returns a compact human-readable form used in logs and CLI output.
func (m *RoleMapping) String() string {
	return fmt.Sprintf("%s: %d/%d -> %d/%d", m.ID, m.SourceCommunityID, m.SourceRoleID,
		m.TargetCommunityID, m.TargetRoleID)
}

// Validate checks the structural fields of a mapping.
func (m *RoleMapping) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidMapping)
	case m.SourceCommunityID == 0 || m.SourceRoleID == 0:
		return fmt.Errorf("%w: source community and role are required", ErrInvalidMapping)
	case m.TargetCommunityID == 0 || m.TargetRoleID == 0:
		return fmt.Errorf("%w: target community and role are required", ErrInvalidMapping)
	case !ValidSnowflake(m.SourceCommunityID) || !ValidSnowflake(m.SourceRoleID) ||
		!ValidSnowflake(m.TargetCommunityID) || !ValidSnowflake(m.TargetRoleID):
		return fmt.Errorf("%w: ids must not exceed %d", ErrInvalidMapping, MaxSnowflake)
	case m.SourceCommunityID == m.TargetCommunityID:
		return fmt.Errorf("%w: source community must differ from target community", ErrInvalidMapping)
	}
	return nil
}

// MappingUpdate carries the mutable fields of a RoleMapping. Nil fields are
// left unchanged.
type MappingUpdate struct {
	SourceCommunityID *uint64 `json:"source_community_id,omitempty,string"`
	SourceRoleID      *uint64 `json:"source_role_id,omitempty,string"`
	TargetCommunityID *uint64 `json:"target_community_id,omitempty,string"`
	TargetRoleID      *uint64 `json:"target_role_id,omitempty,string"`
	Description       *string `json:"description,omitempty"`
	Enabled           *bool   `json:"enabled,omitempty"`
}

// Apply copies the non-nil fields of u onto m.
func (u MappingUpdate) Apply(m *RoleMapping) {
	if u.SourceCommunityID != nil {
		m.SourceCommunityID = *u.SourceCommunityID
	}
	if u.SourceRoleID != nil {
		m.SourceRoleID = *u.SourceRoleID
	}
	if u.TargetCommunityID != nil {
		m.TargetCommunityID = *u.TargetCommunityID
	}
	if u.TargetRoleID != nil {
		m.TargetRoleID = *u.TargetRoleID
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if u.Enabled != nil {
		m.Enabled = *u.Enabled
	}
}

// IsEmpty reports whether the update would change nothing.
func (u MappingUpdate) IsEmpty() bool {
	return u.SourceCommunityID == nil && u.SourceRoleID == nil && u.TargetCommunityID == nil &&
		u.TargetRoleID == nil && u.Description == nil && u.Enabled == nil
}

// Error types for role mapping operations.
var (
	ErrMappingNotFound  = errors.New("role mapping not found")
	ErrDuplicateMapping = errors.New("role mapping already exists")
	ErrInvalidMapping   = errors.New("invalid role mapping")
)
