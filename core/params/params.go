package params

import (
	"strconv"

	"timezone-scheduler/core/constants"

	"github.com/labstack/echo/v4"
)

type QueryParams struct {
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

// NewQueryParams reads page/limit from the query string.
func NewQueryParams(c echo.Context) *QueryParams {
	return Normalize(atoi(c.QueryParam("page")), atoi(c.QueryParam("limit")))
}

// Normalize clamps page and size to sane values.
func Normalize(page, size int) *QueryParams {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = constants.DefaultPageSize
	}
	if size > constants.MaxPageSize {
		size = constants.MaxPageSize
	}
	return &QueryParams{PageNumber: page, PageSize: size}
}

func (p QueryParams) Offset() int {
	return (p.PageNumber - 1) * p.PageSize
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
