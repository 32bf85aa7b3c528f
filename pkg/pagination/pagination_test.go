package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsFromQuery(t *testing.T, query string) Params {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/trips"+query, nil)

	return ParseParams(c)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, DefaultLimit},
		{"explicit", "?page=3&limit=10", 3, 10},
		{"zero page falls back", "?page=0", 1, DefaultLimit},
		{"negative limit falls back", "?limit=-5", 1, DefaultLimit},
		{"limit capped", "?limit=500", 1, MaxLimit},
		{"garbage falls back", "?page=abc&limit=xyz", 1, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := paramsFromQuery(t, tt.query)
			assert.Equal(t, tt.wantPage, params.Page)
			assert.Equal(t, tt.wantLimit, params.Limit)
		})
	}
}

func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, Params{Page: 3, Limit: 20}.Offset())
}

func TestBuildMeta(t *testing.T) {
	meta := BuildMeta(Params{Page: 2, Limit: 20}, 45)

	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, int64(45), meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
}

func TestHasMore(t *testing.T) {
	assert.True(t, HasMore(Params{Page: 1, Limit: 20}, 45))
	assert.True(t, HasMore(Params{Page: 2, Limit: 20}, 45))
	assert.False(t, HasMore(Params{Page: 3, Limit: 20}, 45))
}
