package duel

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/reject"
)

type duelHandler struct {
	duelService *Service
}

func RegisterRoutes(rg *gin.RouterGroup, service *Service) {
	handler := duelHandler{
		duelService: service,
	}

	routes := rg.Group("/duels")
	routes.GET("", handler.getDirectory)
	routes.GET("/:id", handler.getDuel)
	routes.GET("/:id/record", handler.getRecord)
}

func (dh *duelHandler) getDirectory(c *gin.Context) {
	snapshot, err := dh.duelService.Directory(c.Request.Context())
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (dh *duelHandler) getDuel(c *gin.Context) {
	id, ok := ParseId(c)
	if !ok {
		return
	}
	view, err := dh.duelService.View(c.Request.Context(), id)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (dh *duelHandler) getRecord(c *gin.Context) {
	id, ok := ParseId(c)
	if !ok {
		return
	}
	view, err := dh.duelService.Record(c.Request.Context(), id)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ParseId reads the :id path parameter, answering 400 when it is not a game id.
func ParseId(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return 0, false
	}
	return id, true
}

func formatId(id uint64) string {
	return strconv.FormatUint(id, 10)
}
