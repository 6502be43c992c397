package httpx

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLimitOffset(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=0", 1, 0},
		{"?limit=1000", 100, 0},
		{"?offset=-3", 20, 0},
		{"?limit=abc&offset=x", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/security/jobs"+tt.query, nil)
			lim, off := ParseLimitOffset(r, defaultListLimit, maxListLimit)
			assert.Equal(t, tt.wantLimit, lim)
			assert.Equal(t, tt.wantOffset, off)
		})
	}
}

func TestQueryString(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?status=%20running%20&empty=", nil)
	assert.Equal(t, "running", *queryString(r, "status"))
	assert.Nil(t, queryString(r, "empty"))
	assert.Nil(t, queryString(r, "missing"))
}
