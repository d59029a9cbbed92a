package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

func paramError(field, msg string, extra ...any) error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			details[k] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseURLUUID reads a chi path parameter. The nil uuid is rejected.
func ParseURLUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, paramError(key, "invalid identifier")
	}
	return id, nil
}

// ParseQueryUUID returns nil when the parameter is absent.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, paramError(key, "query parameter must be a uuid")
	}
	return &id, nil
}

// ParseQueryInt returns def when key is absent and rejects values outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, paramError(key, "query parameter must be numeric")
	case n < lo || n > hi:
		return 0, paramError(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return n, nil
}

// ParseQueryBool accepts the strconv.ParseBool spellings and returns def when key is absent.
func ParseQueryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, paramError(key, "query parameter must be a boolean")
	}
	return v, nil
}
