package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/actions?"+query, nil)
	return c
}

func TestNewPageRequestDefaults(t *testing.T) {
	page, problem := NewPageRequest(pageContext(""))
	require.Nil(t, problem)
	assert.Equal(t, PageRequest{Size: 20, Token: 0, Offset: 0}, page)
}

func TestNewPageRequestCapsSize(t *testing.T) {
	page, problem := NewPageRequest(pageContext("page_size=500&page_token=2"))
	require.Nil(t, problem)
	assert.Equal(t, 100, page.Size)
	assert.Equal(t, 200, page.Offset)
}

func TestNewPageRequestRejectsGarbage(t *testing.T) {
	_, problem := NewPageRequest(pageContext("page_size=abc"))
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)

	_, problem = NewPageRequest(pageContext("page_token=-1"))
	require.NotNil(t, problem)
}

func TestNextToken(t *testing.T) {
	page := PageRequest{Size: 10, Token: 1, Offset: 10}
	next := page.NextToken(25)
	require.NotNil(t, next)
	assert.Equal(t, int64(2), *next)
	assert.Nil(t, page.NextToken(20))
}

func TestPageResponseBuilder(t *testing.T) {
	res := NewPageResponse[string]().WithItems([]string{"a"}).WithItemCount(1).Build()
	assert.Equal(t, []string{"a"}, res.Items)
	assert.Equal(t, int64(1), res.ItemCount)
}

func TestNewPageRequestRejectsOverflowingToken(t *testing.T) {
	_, problem := NewPageRequest(pageContext("page_size=100&page_token=92233720368547759"))
	require.NotNil(t, problem)
	assert.Equal(t, "error.request.page-token-invalid", problem.Problem.Code)

	page, problem := NewPageRequest(pageContext("page_size=100&page_token=1000000"))
	require.Nil(t, problem)
	assert.Equal(t, 100_000_000, page.Offset)
}
