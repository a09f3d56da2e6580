package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

// maxImportBytes caps the body of a mapping import.
const maxImportBytes = 4 << 20

// MappingHandler handles role mapping API endpoints.
type MappingHandler struct {
	runtime *runtime.Runtime
}

// NewMappingHandler creates a new MappingHandler.
func NewMappingHandler(rt *runtime.Runtime) *MappingHandler {
	return &MappingHandler{runtime: rt}
}

// CreateMappingRequest is the request body for POST /api/v1/mappings.
// TargetCommunityID defaults to the configured target community.
type CreateMappingRequest struct {
	ID                string `json:"id,omitempty" validate:"omitempty,max=64"`
	SourceCommunityID uint64 `json:"source_community_id,string" validate:"required"`
	SourceRoleID      uint64 `json:"source_role_id,string" validate:"required"`
	TargetCommunityID uint64 `json:"target_community_id,omitempty,string"`
	TargetRoleID      uint64 `json:"target_role_id,string" validate:"required"`
	Description       string `json:"description,omitempty" validate:"max=512"`
	Enabled           *bool  `json:"enabled,omitempty"`
}

// ImportResponse is returned by POST /api/v1/mappings/import.
type ImportResponse struct {
	Imported int           `json:"imported"`
	Stats    mapping.Stats `json:"stats"`
}

// List handles GET /api/v1/mappings.
// The optional source_community query parameter filters by source community.
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings := h.runtime.Mappings()
	if raw := r.URL.Query().Get("source_community"); raw != "" {
		community, err := strconv.ParseUint(raw, 10, models.SnowflakeBits)
		if err != nil {
			BadRequest(w, "Invalid source_community")
			return
		}
		WriteJSONOK(w, nonNilMappings(mappings.ForCommunity(community)))
		return
	}
	WriteJSONOK(w, nonNilMappings(mappings.List()))
}

// Get handles GET /api/v1/mappings/{id}.
func (h *MappingHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.runtime.Mappings().Get(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Mapping not found")
		return
	}
	WriteJSONOK(w, m)
}

// Create handles POST /api/v1/mappings.
func (h *MappingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMappingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m := &models.RoleMapping{
		ID:                req.ID,
		SourceCommunityID: req.SourceCommunityID,
		SourceRoleID:      req.SourceRoleID,
		TargetCommunityID: req.TargetCommunityID,
		TargetRoleID:      req.TargetRoleID,
		Description:       req.Description,
		Enabled:           true,
	}
	if m.TargetCommunityID == 0 {
		m.TargetCommunityID = h.runtime.TargetCommunity()
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}

	created, err := h.runtime.Mappings().Add(r.Context(), m)
	if err != nil {
		writeMappingError(w, err, "Failed to create mapping")
		return
	}
	WriteJSONCreated(w, created)
}

// Update handles PATCH /api/v1/mappings/{id}.
func (h *MappingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd models.MappingUpdate
	if !decodeJSONBody(w, r, &upd) {
		return
	}
	h.update(w, r, upd)
}

// Enable handles POST /api/v1/mappings/{id}/enable.
func (h *MappingHandler) Enable(w http.ResponseWriter, r *http.Request) {
	on := true
	h.update(w, r, models.MappingUpdate{Enabled: &on})
}

// Disable handles POST /api/v1/mappings/{id}/disable.
func (h *MappingHandler) Disable(w http.ResponseWriter, r *http.Request) {
	off := false
	h.update(w, r, models.MappingUpdate{Enabled: &off})
}

func (h *MappingHandler) update(w http.ResponseWriter, r *http.Request, upd models.MappingUpdate) {
	updated, found, err := h.runtime.Mappings().Update(r.Context(), chi.URLParam(r, "id"), upd)
	if !found {
		NotFound(w, "Mapping not found")
		return
	}
	if err != nil {
		writeMappingError(w, err, "Failed to update mapping")
		return
	}
	WriteJSONOK(w, updated)
}

// Delete handles DELETE /api/v1/mappings/{id}.
func (h *MappingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.runtime.Mappings().Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		InternalServerError(w, "Failed to delete mapping")
		return
	}
	if !removed {
		NotFound(w, "Mapping not found")
		return
	}
	WriteNoContent(w)
}

// Stats handles GET /api/v1/mappings/stats.
func (h *MappingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.runtime.Mappings().Stats())
}

// Import handles POST /api/v1/mappings/import. The body uses the mapping file
// format and replaces the whole table.
func (h *MappingHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		BadRequest(w, "Failed to read request body")
		return
	}

	mappings, err := mapping.Parse(data)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.runtime.Mappings().Import(r.Context(), mappings); err != nil {
		logger.Error("Mapping import failed", "operator", operator(r), logger.Err(err))
		InternalServerError(w, "Failed to import mappings")
		return
	}

	logger.Info("Mappings imported via API", "operator", operator(r), logger.KeyMappings, len(mappings))
	WriteJSONOK(w, ImportResponse{Imported: len(mappings), Stats: h.runtime.Mappings().Stats()})
}

func writeMappingError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrDuplicateMapping):
		Conflict(w, "Mapping already exists")
	case errors.Is(err, models.ErrInvalidMapping):
		UnprocessableEntity(w, err.Error())
	default:
		InternalServerError(w, fallback)
	}
}

func nonNilMappings(m []*models.RoleMapping) []*models.RoleMapping {
	if m == nil {
		return []*models.RoleMapping{}
	}
	return m
}
