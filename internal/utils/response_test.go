package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponseEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorResponseWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative.",
		map[string]interface{}{"price": "Price cannot be negative."})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, c.IsAborted())

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusError, body.Status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "Price cannot be negative.", body.Error.Details["price"])
	assert.False(t, body.Timestamp.IsZero())
}

func TestPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=0&page_size=1000", nil)

	p := GetPaginationParams(c)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 0, p.GetSkip())

	meta := CreatePaginationMeta(&PaginationParams{Page: 2, PageSize: 10}, 25)
	assert.Equal(t, 3, meta.TotalPages)
	require.NotNil(t, meta.NextPage)
	assert.Equal(t, 3, *meta.NextPage)
	require.NotNil(t, meta.PreviousPage)
	assert.Equal(t, 1, *meta.PreviousPage)
}
