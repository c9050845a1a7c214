package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	detailTaskNotFound     = "Task not found"
	detailInternalError    = "Internal server error"
	detailValidationFailed = "Validation failed"
)

type detailResponse struct {
	Detail string   `json:"detail"`
	Errors []string `json:"errors,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

func fail(c echo.Context, code int, detail string) error {
	return c.JSON(code, detailResponse{Detail: detail})
}

func failValidation(c echo.Context, problems []string) error {
	return c.JSON(http.StatusUnprocessableEntity, detailResponse{
		Detail: detailValidationFailed,
		Errors: problems,
	})
}

func failNotFound(c echo.Context) error {
	return fail(c, http.StatusNotFound, detailTaskNotFound)
}

func internalError(c echo.Context) error {
	return fail(c, http.StatusInternalServerError, detailInternalError)
}
