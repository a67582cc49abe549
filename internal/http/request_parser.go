package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
)

// maxBodyBytes bounds JSON request bodies. A full year import is well below it.
const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Invalid("Request body is required")
		case errors.As(err, &maxErr):
			return core.Invalid("Request body is too large")
		default:
			return core.Invalid("Invalid request body: %s", strings.TrimPrefix(err.Error(), "json: "))
		}
	}
	if dec.More() {
		return core.Invalid("Request body must contain a single JSON object")
	}
	return nil
}

// pathInt parses a numeric route parameter.
func pathInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Invalid("Invalid %s %q", name, raw)
	}
	return n, nil
}

// pathYear parses and range-checks the {year} parameter.
func pathYear(r *http.Request) (int, error) {
	year, err := pathInt(r, "year")
	if err != nil {
		return 0, err
	}
	if err := core.ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Invalid("Invalid %s %q", name, raw)
	}
	return n, nil
}
