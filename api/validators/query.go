package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter. An absent or blank
// value yields fallback; anything else must parse and fall within [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, queryError(key, key+" must be an integer", nil)
	case value < lo || value > hi:
		return 0, queryError(key, fmt.Sprintf("%s must be between %d and %d", key, lo, hi), map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

func queryError(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
