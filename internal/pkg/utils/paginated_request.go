package utils

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/reject"
)

const (
	pageSizeInvalid  string = "error.request.page-size-invalid"
	pageTokenInvalid string = "error.request.page-token-invalid"

	defaultPageSize = 20
	maxPageSize     = 100
)

type PageRequest struct {
	Size   int
	Token  int
	Offset int
}

// NewPageRequest reads page_size and page_token from the query. Both are
// optional; the size is capped at 100.
func NewPageRequest(c *gin.Context) (PageRequest, *reject.ProblemWithTrace) {
	pageSize := defaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return PageRequest{}, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Invalid page size").
					WithStatus(http.StatusBadRequest).
					WithCode(pageSizeInvalid).
					Build(),
				Cause: err,
			}
		}
		pageSize = min(n, maxPageSize)
	}

	pageToken := 0
	if raw := c.Query("page_token"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > math.MaxInt/pageSize-1 {
			return PageRequest{}, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Invalid page token").
					WithStatus(http.StatusBadRequest).
					WithCode(pageTokenInvalid).
					Build(),
				Cause: err,
			}
		}
		pageToken = n
	}

	return PageRequest{
		Size:   pageSize,
		Token:  pageToken,
		Offset: pageSize * pageToken,
	}, nil
}

// NextToken returns the token of the page after p when more items remain.
func (p PageRequest) NextToken(total int64) *int64 {
	if total > int64(p.Offset+p.Size) {
		next := int64(p.Token + 1)
		return &next
	}
	return nil
}
