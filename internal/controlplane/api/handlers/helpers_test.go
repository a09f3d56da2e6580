package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/auth"
	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/middleware"
)

func TestWriteProblem(t *testing.T) {
	w := httptest.NewRecorder()
	NotFound(w, "Mapping not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	assert.Equal(t, "Not Found", p.Title)
	assert.Equal(t, "Mapping not found", p.Detail)
	assert.Equal(t, http.StatusNotFound, p.Status)
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ok     bool
		detail string
	}{
		{"valid", `{"source_community_id":"1","source_role_id":"2","target_role_id":"3"}`, true, ""},
		{"malformed json", `{`, false, "Invalid request body"},
		{"missing role", `{"source_community_id":"1","target_role_id":"3"}`, false, "SourceRoleID failed on 'required'"},
		{"id too long", `{"id":"` + strings.Repeat("x", 65) + `","source_community_id":"1","source_role_id":"2","target_role_id":"3"}`, false, "ID failed on 'max'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var v CreateMappingRequest
			assert.Equal(t, tt.ok, decodeAndValidate(w, req, &v))
			if tt.ok {
				assert.Equal(t, uint64(2), v.SourceRoleID)
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.detail)
		})
	}
}

func TestSnowflakeParam(t *testing.T) {
	tests := []struct {
		raw  string
		want uint64
		ok   bool
	}{
		{"123456789012345678", 123456789012345678, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"12x", 0, false},
		{"9223372036854775807", 9223372036854775807, true},
		{"9223372036854775808", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			got, ok := snowflakeParam(w, req, "id")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=900&days=abc&dry_run=true", nil)

	n, err := intQuery(req, "limit", 20, 500)
	require.NoError(t, err)
	assert.Equal(t, 500, n, "clamped to max")

	n, err = intQuery(req, "missing", 20, 500)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = intQuery(req, "days", 7, 0)
	assert.Error(t, err)

	on, err := boolQuery(req, "dry_run")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = boolQuery(req, "missing")
	require.NoError(t, err)
	assert.False(t, on)
}

func TestOperator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "anonymous", operator(req))

	claims := &auth.Claims{Role: auth.RoleAdmin}
	claims.Subject = "alice"
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	assert.Equal(t, "alice", operator(req))
}
