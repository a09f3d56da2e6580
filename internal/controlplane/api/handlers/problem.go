// Package handlers provides HTTP handlers for the rolesync API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ContentTypeProblemJSON is the Content-Type of error responses.
const ContentTypeProblemJSON = "application/problem+json"

// Problem is an RFC 7807 error body. The apiclient package decodes the same
// shape into APIError.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// WriteProblem writes an error response whose title is the status text.
func WriteProblem(w http.ResponseWriter, status int, detail string) {
	writeBody(w, status, ContentTypeProblemJSON, &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, detail)
}

// Conflict is used for duplicate mappings and for sweeps that cannot start.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, detail)
}

// UnprocessableEntity reports a well-formed mapping that fails validation.
func UnprocessableEntity(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnprocessableEntity, detail)
}

// InternalServerError reports a store or runtime failure. detail must not
// carry the underlying error text; that goes to the log.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, detail)
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, status, "application/json", data)
}

func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
