package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/middleware"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// decodeAndValidate decodes the body and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSONBody(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		BadRequest(w, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// snowflakeParam parses a numeric path parameter. It writes a 400 and
// returns false when the value is not a positive integer.
func snowflakeParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, models.SnowflakeBits)
	if err != nil || id == 0 {
		BadRequest(w, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

// intQuery reads a positive integer query parameter, falling back to def.
func intQuery(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// boolQuery reads a boolean query parameter; absent means false.
func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// operator names the token holder for logs.
func operator(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.Operator()
	}
	return "anonymous"
}
