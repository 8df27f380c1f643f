package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/pawtrip/backend/internal/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string             `json:"error"`
	Code    services.ErrorCode `json:"code"`
	Details any                `json:"details,omitempty"`
}

// FieldError describes one rejected request field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule,omitempty"`
	Issue string `json:"issue"`
}

var statusByCode = map[services.ErrorCode]int{
	services.CodeValidation:        http.StatusBadRequest,
	services.CodeRateLimited:       http.StatusTooManyRequests,
	services.CodeProviderError:     http.StatusBadGateway,
	services.CodeParseError:        http.StatusBadGateway,
	services.CodeGenerationFailed:  http.StatusBadGateway,
	services.CodeInvalidTransition: http.StatusConflict,
	services.CodeNotFound:          http.StatusNotFound,
	services.CodeUnavailable:       http.StatusServiceUnavailable,
	services.CodeInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error code
func StatusFor(code services.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Binding errors become validation errors.
func respondError(c *gin.Context, err error) {
	if fields := bindingErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    services.CodeValidation,
			Details: fields,
		})
		return
	}

	code := services.CodeOf(err)
	status := StatusFor(code)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var verr *services.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		resp.Details = []FieldError{{Field: verr.Field, Issue: verr.Reason}}
	}
	if code == services.CodeInternal {
		resp.Error = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		log.Printf("API: %s %s failed (%s): %v", c.Request.Method, c.FullPath(), code, err)
	}
	c.JSON(status, resp)
}

// bindingErrors converts validator and JSON decoding failures to field errors.
// It returns nil for any other error.
func bindingErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
				Issue: issueFor(fe),
			})
		}
		return fields
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return []FieldError{{Field: "body", Issue: "request body is too large"}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []FieldError{{Field: "body", Issue: "malformed JSON"}}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Issue: "expected " + typeErr.Type.String()}}
	}
	if err != nil && (err.Error() == "EOF" || strings.HasPrefix(err.Error(), "unexpected EOF")) {
		return []FieldError{{Field: "body", Issue: "request body is empty"}}
	}
	return nil
}

func init() {
	// Report JSON names in validation errors instead of Go field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func issueFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
