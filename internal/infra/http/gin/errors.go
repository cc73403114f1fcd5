package ginserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	"staybook/internal/domain/shared/domainerr"
)

var errBadDate = errors.New("must be a date formatted YYYY-MM-DD")

type errorBody struct {
	Error    string        `json:"error"`
	Kind     string        `json:"kind"`
	Field    string        `json:"field,omitempty"`
	Conflict *dto.Conflict `json:"conflict,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses. Unclassified errors
// are logged by the bus and never echoed to the client.
func writeError(c *gin.Context, err error) {
	body := errorBody{Error: err.Error(), Kind: domainerr.Kind(err)}
	status := http.StatusInternalServerError

	var validation *domainerr.ValidationError
	var conflict *domainerr.ConflictError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body.Field = validation.Field
	case errors.Is(err, domainerr.ErrValidation):
		status = http.StatusBadRequest
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body.Conflict = dto.MapConflict(conflict)
	case errors.Is(err, domainerr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domainerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainerr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domainerr.ErrTransient):
		status = http.StatusServiceUnavailable
		body.Error = "temporarily unavailable, retry later"
		c.Header("Retry-After", "1")
	default:
		body.Error = "internal error"
		body.Kind = "internal"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, field string, err error) {
	writeError(c, domainerr.Validation(field, err))
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domainerr.Validationf(field, "is required")
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	// The calendar day is the one written in the input, whatever its offset.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, domainerr.Validation(field, errBadDate)
}

func parseInt(field, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domainerr.Validation(field, fmt.Errorf("must be an integer: %w", err))
	}
	return n, nil
}
