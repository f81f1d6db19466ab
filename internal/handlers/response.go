package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"referral-shop/internal/apperrors"
	applog "referral-shop/pkg/logger"
)

// SuccessResponse is the envelope of every successful answer
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the envelope of every failed answer
type ErrorResponse struct {
	Status     string             `json:"status"`
	StatusCode int                `json:"statusCode"`
	Message    string             `json:"message"`
	Errors     []ValidationDetail `json:"errors,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Status:     "error",
		StatusCode: status,
		Message:    message,
	})
}

// respondAppError maps a service error to the error envelope. Internal
// details are logged and never returned.
func respondAppError(c *gin.Context, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		applog.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	respondError(c, status, apperrors.PublicMessage(err))
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their json names
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON binds and validates the request body. On failure it writes a 400
// with field-level details and returns false.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var details []ValidationDetail
	var validationErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &validationErrs):
		for _, e := range validationErrs {
			details = append(details, ValidationDetail{
				Field:   e.Field(),
				Message: fieldMessage(e),
			})
		}
	case errors.As(err, &typeErr):
		details = append(details, ValidationDetail{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s has an invalid type", typeErr.Field),
		})
	default:
		details = append(details, ValidationDetail{
			Field:   "body",
			Message: "Malformed JSON or invalid request body",
		})
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Status:     "error",
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Errors:     details,
	})
	return false
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", e.Field(), e.Tag())
	}
}

// pageParams reads page and limit from the query string. Bad values fall
// back to the defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}
