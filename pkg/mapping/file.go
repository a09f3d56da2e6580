package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// File is the on-disk JSON layout of a mapping file.
type File struct {
	Mappings []FileMapping `json:"mappings"`
}

// FileMapping is one entry of a mapping file. Ids are snowflakes and may be
// written either as strings or as bare numbers.
type FileMapping struct {
	ID             string    `json:"id"`
	SourceServerID Snowflake `json:"source_server_id"`
	SourceRoleID   Snowflake `json:"source_role_id"`
	TargetServerID Snowflake `json:"target_server_id"`
	TargetRoleID   Snowflake `json:"target_role_id"`
	Description    string    `json:"description"`
	Enabled        bool      `json:"enabled"`
}

// Snowflake is a uint64 id that marshals as a JSON string.
type Snowflake uint64

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(s), 10))
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		b = []byte(str)
	}
	v, err := strconv.ParseUint(string(b), 10, models.SnowflakeBits)
	if err != nil {
		return fmt.Errorf("invalid snowflake %q: %w", b, err)
	}
	*s = Snowflake(v)
	return nil
}

// ReadFile parses a mapping file.
func ReadFile(path string) ([]*models.RoleMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes mapping file content and validates every entry.
func Parse(data []byte) ([]*models.RoleMapping, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}

	out := make([]*models.RoleMapping, 0, len(f.Mappings))
	seen := make(map[string]struct{}, len(f.Mappings))
	for i, fm := range f.Mappings {
		m := &models.RoleMapping{
			ID:                fm.ID,
			SourceCommunityID: uint64(fm.SourceServerID),
			SourceRoleID:      uint64(fm.SourceRoleID),
			TargetCommunityID: uint64(fm.TargetServerID),
			TargetRoleID:      uint64(fm.TargetRoleID),
			Description:       fm.Description,
			Enabled:           fm.Enabled,
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("mapping #%d: %w", i+1, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("mapping #%d: %w: %s", i+1, models.ErrDuplicateMapping, m.ID)
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// Encode renders mappings in the mapping file layout.
func Encode(mappings []*models.RoleMapping) ([]byte, error) {
	f := File{Mappings: make([]FileMapping, 0, len(mappings))}
	for _, m := range mappings {
		f.Mappings = append(f.Mappings, FileMapping{
			ID:             m.ID,
			SourceServerID: Snowflake(m.SourceCommunityID),
			SourceRoleID:   Snowflake(m.SourceRoleID),
			TargetServerID: Snowflake(m.TargetCommunityID),
			TargetRoleID:   Snowflake(m.TargetRoleID),
			Description:    m.Description,
			Enabled:        m.Enabled,
		})
	}
	return json.MarshalIndent(f, "", "  ")
}

// WriteExampleFile creates a mapping file holding one disabled example entry.
func WriteExampleFile(path string) error {
	data, err := Encode([]*models.RoleMapping{{
		ID:                "example_mapping",
		SourceCommunityID: 100000000000000000,
		SourceRoleID:      111111111111111111,
		TargetCommunityID: 222222222222222222,
		TargetRoleID:      333333333333333333,
		Description:       "Example mapping, replace the ids and enable it",
	}})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
