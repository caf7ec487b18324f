package utils

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	// MaxPage keeps (page-1)*MaxLimit well inside int range.
	MaxPage = 1 << 20
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
	Cursor string
	// PageMode is true when the caller asked for offset pagination via ?page=.
	PageMode bool
}

// ClampLimit forces limit into [1, MaxLimit]; zero means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// NormalizePage forces page into [1, MaxPage].
func NormalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// GetPaginationParams extracts pagination parameters from request
func GetPaginationParams(c echo.Context) PaginationParams {
	limit := DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			if parsed < 1 {
				parsed = 1
			}
			limit = ClampLimit(parsed)
		}
	}

	params := PaginationParams{
		Page:   1,
		Limit:  limit,
		Cursor: c.QueryParam("cursor"),
	}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil && stderrors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			page = MaxPage
		}
		params.Page = NormalizePage(page)
		params.PageMode = true
	}
	params.Offset = (params.Page - 1) * params.Limit

	return params
}
