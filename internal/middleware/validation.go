package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
)

// QueryParamValidator validates query parameters. On failure it writes an
// RFC 7807 response and reports false; callers just return.
type QueryParamValidator struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		validator:    validator.New(),
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// IntList reads a repeated or comma-separated integer parameter
// (?rat=3&rat=4 or ?rat=3,4). Every value must lie in [min, max].
func (v *QueryParamValidator) IntList(w http.ResponseWriter, r *http.Request, param string, min, max int) ([]int, bool) {
	var out []int
	for _, raw := range r.URL.Query()[param] {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			n, err := strconv.Atoi(field)
			if err != nil {
				v.reject(w, r, param, fmt.Sprintf("%s must be a list of integers", param))
				return nil, false
			}
			if err := v.validator.Var(n, fmt.Sprintf("min=%d,max=%d", min, max)); err != nil {
				v.reject(w, r, param, fmt.Sprintf("%s must be between %d and %d", param, min, max))
				return nil, false
			}
			out = append(out, n)
		}
	}
	return out, true
}

// Bool reads a boolean parameter; absent means defaultValue.
func (v *QueryParamValidator) Bool(w http.ResponseWriter, r *http.Request, param string, defaultValue bool) (bool, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.reject(w, r, param, fmt.Sprintf("%s must be true or false", param))
		return false, false
	}
	return b, true
}

func (v *QueryParamValidator) reject(w http.ResponseWriter, r *http.Request, param, message string) {
	v.logger.DebugContext(r.Context(), "invalid query parameter",
		slog.String("param", param),
		slog.String("value", r.URL.Query().Get(param)))
	v.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
		http.StatusBadRequest,
		"INVALID_PARAMETER",
		message,
		apierrors.ValidationError{Field: param, Message: message},
	))
}
