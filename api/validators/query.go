package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("query param %q must be an integer", key))
	}
	if val < min || val > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query param %q must be between %d and %d", key, min, max))
	}
	return val, nil
}

func RequireQuery(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query param %q is required", key))
	}
	return raw, nil
}
