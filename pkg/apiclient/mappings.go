package apiclient

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

// Mapping is a role mapping as returned by the API.
type Mapping = models.RoleMapping

// CreateMappingRequest is the request to create a mapping. A zero
// TargetCommunityID means the server's target community.
type CreateMappingRequest struct {
	ID                string `json:"id,omitempty"`
	SourceCommunityID uint64 `json:"source_community_id,string"`
	SourceRoleID      uint64 `json:"source_role_id,string"`
	TargetCommunityID uint64 `json:"target_community_id,omitempty,string"`
	TargetRoleID      uint64 `json:"target_role_id,string"`
	Description       string `json:"description,omitempty"`
	Enabled           *bool  `json:"enabled,omitempty"`
}

// ImportResult is returned by ImportMappings.
type ImportResult struct {
	Imported int           `json:"imported"`
	Stats    mapping.Stats `json:"stats"`
}

// ListMappings returns all mappings, or those reading from sourceCommunity
// when it is non-zero.
func (c *Client) ListMappings(sourceCommunity uint64) ([]Mapping, error) {
	path := "/api/v1/mappings"
	if sourceCommunity != 0 {
		path += "?source_community=" + url.QueryEscape(strconv.FormatUint(sourceCommunity, 10))
	}
	return listResources[Mapping](c, path)
}

// GetMapping returns a mapping by id.
func (c *Client) GetMapping(id string) (*Mapping, error) {
	return getResource[Mapping](c, resourcePath("/api/v1/mappings/%s", url.PathEscape(id)))
}

// CreateMapping creates a mapping.
func (c *Client) CreateMapping(req *CreateMappingRequest) (*Mapping, error) {
	return createResource[Mapping](c, "/api/v1/mappings", req)
}

// UpdateMapping applies a partial update.
func (c *Client) UpdateMapping(id string, upd *models.MappingUpdate) (*Mapping, error) {
	return patchResource[Mapping](c, resourcePath("/api/v1/mappings/%s", url.PathEscape(id)), upd)
}

// SetMappingEnabled enables or disables a mapping.
func (c *Client) SetMappingEnabled(id string, enabled bool) (*Mapping, error) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	return createResource[Mapping](c, resourcePath("/api/v1/mappings/%s/%s", url.PathEscape(id), action), nil)
}

// DeleteMapping deletes a mapping.
func (c *Client) DeleteMapping(id string) error {
	return deleteResource(c, resourcePath("/api/v1/mappings/%s", url.PathEscape(id)))
}

// MappingStats returns mapping table statistics.
func (c *Client) MappingStats() (*mapping.Stats, error) {
	return getResource[mapping.Stats](c, "/api/v1/mappings/stats")
}

// ImportMappings replaces the mapping table with the content of a mapping file.
func (c *Client) ImportMappings(data []byte) (*ImportResult, error) {
	if !json.Valid(data) {
		return nil, &APIError{Title: "Invalid mapping file", Detail: "content is not valid JSON"}
	}
	return createResource[ImportResult](c, "/api/v1/mappings/import", json.RawMessage(data))
}
