package action

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/luckybase-backend/internal/duel"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/utils"
)

const (
	actionInvalidStake = "error.action.invalid-stake"
	actionFailed       = "error.action.failed"
	actionNotFound     = "error.action.not-found"
)

type CreateDuelRequest struct {
	Stake string `json:"stake" binding:"required"`
	Asset string `json:"asset"`
}

type JoinDuelRequest struct {
	Stake string `json:"stake"`
}

type actionHandler struct {
	submitter *Submitter
	snapshots duel.SnapshotSource
}

func RegisterRoutes(rg *gin.RouterGroup, submitter *Submitter, snapshots duel.SnapshotSource) {
	handler := actionHandler{
		submitter: submitter,
		snapshots: snapshots,
	}

	duels := rg.Group("/duels")
	duels.POST("", handler.createDuel)
	duels.POST("/:id/join", handler.joinDuel)
	duels.POST("/:id/refund", handler.refundDuel)

	actions := rg.Group("/actions")
	actions.GET("", handler.getActions)
	actions.GET("/:id", handler.getAction)
}

func (ah *actionHandler) createDuel(c *gin.Context) {
	body := CreateDuelRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	a, err := ah.submitter.SubmitAsync(c.Request.Context(), Request{
		Kind:        model.ActionCreate,
		StakeAmount: body.Stake,
		Asset:       model.AssetKind(body.Asset),
	})
	respond(c, a, err)
}

// joinDuel sends exactly the stake shown in the directory entry unless the
// client names one explicitly.
func (ah *actionHandler) joinDuel(c *gin.Context) {
	id, ok := duel.ParseId(c)
	if !ok {
		return
	}
	body := JoinDuelRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
			return
		}
	}

	snapshot, err := ah.snapshots.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, reject.UnavailableProblem("directory is still loading"))
		return
	}
	entry, found := snapshot.Find(id)
	if !found {
		c.JSON(http.StatusNotFound, duel.NotFoundProblem(id))
		return
	}
	stake := entry.Stake
	if body.Stake != "" {
		stake = body.Stake
	}

	a, err := ah.submitter.SubmitAsync(c.Request.Context(), Request{
		Kind:        model.ActionJoin,
		GameId:      id,
		StakeAmount: stake,
		Asset:       entry.Asset,
	})
	respond(c, a, err)
}

func (ah *actionHandler) refundDuel(c *gin.Context) {
	id, ok := duel.ParseId(c)
	if !ok {
		return
	}
	a, err := ah.submitter.SubmitAsync(c.Request.Context(), Request{Kind: model.ActionRefund, GameId: id})
	respond(c, a, err)
}

func (ah *actionHandler) getAction(c *gin.Context) {
	a, err := ah.submitter.Find(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrActionNotFound) {
		c.JSON(http.StatusNotFound, reject.NewProblem().
			WithTitle("Action not found").
			WithStatus(http.StatusNotFound).
			WithCode(actionNotFound).
			Build())
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, reject.UnexpectedProblem(err))
		return
	}
	c.JSON(http.StatusOK, a)
}

func (ah *actionHandler) getActions(c *gin.Context) {
	page, problem := utils.NewPageRequest(c)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	actions, total, err := ah.submitter.List(c.Request.Context(), page.Offset, page.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, reject.UnexpectedProblem(err))
		return
	}

	response := utils.NewPageResponse[model.Action]().
		WithItems(actions).
		WithItemCount(total).
		WithNextPageToken(page.NextToken(total))
	c.JSON(http.StatusOK, response.Build())
}

func respond(c *gin.Context, a model.Action, err error) {
	if err != nil {
		p := actionProblem(c.Request.URL.Path, a, err)
		c.JSON(p.Problem.Status, p.Problem)
		return
	}
	c.JSON(http.StatusAccepted, a)
}

func actionProblem(path string, a model.Action, err error) *reject.ProblemWithTrace {
	var actionErr *Error
	if !errors.As(err, &actionErr) {
		return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	problem := reject.NewProblem().
		WithPath(path).
		WithParam("actionId", a.Id.String()).
		WithParam("reason", string(actionErr.Reason))
	if actionErr.Cause != nil {
		problem.WithDetail(actionErr.Cause.Error())
	}

	switch actionErr.Reason {
	case model.ReasonInvalidStake:
		problem.WithTitle("Invalid stake").WithStatus(http.StatusBadRequest).WithCode(actionInvalidStake)
		if actionErr.Cause != nil {
			problem.WithErrors([]reject.ProblemDetail{{
				Property: "stake",
				Info:     actionErr.Cause.Error(),
				Code:     actionInvalidStake,
			}})
		}
	case model.ReasonNotFound:
		problem.WithTitle("Duel not open").WithStatus(http.StatusNotFound).WithCode(actionFailed)
	case model.ReasonTooEarly:
		problem.WithTitle("Refund not yet available").WithStatus(http.StatusConflict).WithCode(actionFailed)
	default:
		problem.WithTitle("Action failed").WithStatus(http.StatusBadGateway).WithCode(actionFailed)
	}
	return &reject.ProblemWithTrace{Problem: problem.Build(), Cause: err}
}
