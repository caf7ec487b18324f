package utils

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-7))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 100, ClampLimit(100))
	assert.Equal(t, 100, ClampLimit(101))
}

func TestNormalizePage(t *testing.T) {
	assert.Equal(t, 1, NormalizePage(-3))
	assert.Equal(t, 1, NormalizePage(0))
	assert.Equal(t, 7, NormalizePage(7))
	assert.Equal(t, MaxPage, NormalizePage(math.MaxInt))
}

func TestGetPaginationParams(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name  string
		query string
		want  PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, Limit: 50}},
		{"cursor", "?cursor=abc&limit=20", PaginationParams{Page: 1, Limit: 20, Cursor: "abc"}},
		{"page mode", "?page=3&limit=10", PaginationParams{Page: 3, Limit: 10, Offset: 20, PageMode: true}},
		{"bad page", "?page=-2&limit=500", PaginationParams{Page: 1, Limit: 100, PageMode: true}},
		{"huge page", "?page=4611686018427387905&limit=4", PaginationParams{Page: MaxPage, Limit: 4, Offset: (MaxPage - 1) * 4, PageMode: true}},
		{"out of range page", "?page=99999999999999999999999&limit=4", PaginationParams{Page: MaxPage, Limit: 4, Offset: (MaxPage - 1) * 4, PageMode: true}},
		{"zero limit", "?limit=0", PaginationParams{Page: 1, Limit: 1}},
		{"garbage limit", "?limit=abc", PaginationParams{Page: 1, Limit: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/messages"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, GetPaginationParams(c))
		})
	}
}
