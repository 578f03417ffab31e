package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/repository"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message,omitempty"`
	Code       string                `json:"code,omitempty"`
	Data       any                   `json:"data,omitempty"`
	Pagination *Pagination           `json:"pagination,omitempty"`
	Errors     []apperror.FieldError `json:"errors,omitempty"`
	Details    string                `json:"details,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

var now = func() time.Time { return time.Now().UTC() }

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data, Timestamp: now()})
}

func respondPage(c echo.Context, message string, data any, p Pagination) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Pagination: &p, Timestamp: now()})
}

// bind decodes the body into req and runs struct validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

// pageParams reads ?page= and ?limit=; bad values fall back to the
// defaults applied by repository.Page.Normalize.
func pageParams(c echo.Context) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.Page{Page: page, Limit: limit}.Normalize()
}

// timeParam parses an RFC 3339 timestamp or a plain date.
func timeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.Validation(apperror.FieldError{Field: name, Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
}
