package common

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPaginationParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/admin/guests?page=3&pageSize=500&order=desc&sort=name", nil)
	p := ExtractPaginationParams(r)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.True(t, p.Descending())
	assert.Equal(t, "name", p.Sort)
	assert.Equal(t, 2*MaxPageSize, p.CalculateOffset())

	p = ExtractPaginationParams(httptest.NewRequest("GET", "/?page=-1&order=sideways", nil))
	assert.Equal(t, DefaultPaginationParams(), p)

	p = ExtractPaginationParams(httptest.NewRequest("GET", "/?page=9223372036854775807", nil))
	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, (MaxPage-1)*50, p.CalculateOffset())

	huge := PaginationParams{Page: math.MaxInt, PageSize: math.MaxInt}
	assert.Equal(t, (MaxPage-1)*MaxPageSize, huge.CalculateOffset())
	assert.Zero(t, PaginationParams{Page: 0, PageSize: 10}.CalculateOffset())
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(2, 10, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
	assert.False(t, BuildPaginationMeta(1, 10, 0).HasNext)
}

func TestParseJSONBody_RejectsUnknownFields(t *testing.T) {
	var v struct {
		Code string `json:"code"`
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"code":"ABC123"}`))
	assert.NoError(t, ParseJSONBody(w, r, &v, 1024))
	assert.Equal(t, "ABC123", v.Code)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"code":"ABC123","admin":true}`))
	assert.Error(t, ParseJSONBody(w, r, &v, 1024))
}

func TestRoles(t *testing.T) {
	ctx := WithRoles(context.Background(), []string{"admin"})
	assert.True(t, HasRole(ctx, "admin"))
	assert.False(t, HasRole(context.Background(), "admin"))
}
