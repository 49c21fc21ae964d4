package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/reelrank/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantSize  int
		wantField string
	}{
		{"defaults", "/", 1, 20, ""},
		{"explicit", "/?page=3&page_size=50", 3, 50, ""},
		{"max size", "/?page_size=100", 1, 100, ""},
		{"page zero", "/?page=0", 0, 0, "page"},
		{"page not a number", "/?page=abc", 0, 0, "page"},
		{"size zero", "/?page_size=0", 0, 0, "page_size"},
		{"size over max", "/?page_size=101", 0, 0, "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(tt.query)
			p, apiErr := ParsePagination(c, 20, 100)
			if tt.wantField != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantField, apiErr.Field)
				assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
				return
			}
			require.Nil(t, apiErr)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
		})
	}
}

func TestParseUintParam(t *testing.T) {
	id, err := ParseUintParam("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	_, err = ParseUintParam("abc")
	assert.Error(t, err)
	_, err = ParseUintParam("-1")
	assert.Error(t, err)
}

func TestNormalizeUsername(t *testing.T) {
	name, err := NormalizeUsername("  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = NormalizeUsername("   ")
	assert.Error(t, err)
}

func TestRespondWithAPIError(t *testing.T) {
	c, w := newTestContext("/")
	c.Set(RequestIDKey, "req-1")

	RespondWithAPIError(c, errors.ValidationError("username", "username is required"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.True(t, c.IsAborted())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "username", body.Field)
	assert.Equal(t, "req-1", GetRequestID(c))
}
