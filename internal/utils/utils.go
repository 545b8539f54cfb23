package utils

import (
	"errors"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type CustomErrorResponse struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func ValidationErr(err validator.ValidationErrors) []CustomErrorResponse {
	var errors []CustomErrorResponse
	for _, fieldErr := range err {
		errors = append(errors, CustomErrorResponse{
			Field:   fieldErr.Field(),
			Tag:     fieldErr.ActualTag(),
			Message: GetErrorMessage(fieldErr),
		})
	}
	return errors
}

func GetErrorMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "max":
		return "Must be at most " + fe.Param() + "."
	default:
		return "Unknown validation error."
	}
}

// BindJSON binds and validates the request body, writing a 400 on failure.
func BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.Err(c, http.StatusBadRequest, ValidationErr(validationErrors))
			return false
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
