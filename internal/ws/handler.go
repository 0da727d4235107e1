package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kollektive-hackathon/luckybase-backend/internal/duel"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

type ActionFinder interface {
	Find(ctx context.Context, id string) (model.Action, error)
}

const writeWait = 10 * time.Second

// deadlineConn bounds every write so a peer that stops reading is dropped
// instead of holding its writer forever.
type deadlineConn struct {
	*websocket.Conn
}

func (d *deadlineConn) WriteJSON(v interface{}) error {
	if err := d.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return d.Conn.WriteJSON(v)
}

type wsHandler struct {
	notificationHub *ws.WebSocketNotificationHub
	duelService     *duel.Service
	actions         ActionFinder
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func RegisterRoutes(rg *gin.RouterGroup, hub *ws.WebSocketNotificationHub, duelService *duel.Service, actions ActionFinder) {
	handler := wsHandler{
		notificationHub: hub,
		duelService:     duelService,
		actions:         actions,
	}

	routes := rg.Group("/ws")
	routes.GET("/directory", handler.serveDirectory)
	routes.GET("/duel/:id", handler.serveDuel)
	routes.GET("/action/:id", handler.serveAction)
}

func (wsh *wsHandler) serveDirectory(c *gin.Context) {
	snapshot, problem := wsh.duelService.Directory(c.Request.Context())
	var initial any = snapshot
	if problem != nil {
		initial = nil
	}
	wsh.serve(c, ws.DirectoryTopic, initial)
}

func (wsh *wsHandler) serveDuel(c *gin.Context) {
	gameId, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	var initial any
	if snapshot, problem := wsh.duelService.Directory(c.Request.Context()); problem == nil {
		initial = wsh.duelService.SessionEvent(snapshot, gameId)
	}

	wsh.duelService.Watch(gameId)
	defer wsh.duelService.Unwatch(gameId)
	wsh.serve(c, ws.DuelTopic(gameId), initial)
}

func (wsh *wsHandler) serveAction(c *gin.Context) {
	actionId := c.Param("id")
	a, err := wsh.actions.Find(c.Request.Context(), actionId)
	if err != nil {
		c.JSON(http.StatusNotFound, reject.NotFoundProblem())
		return
	}
	wsh.serve(c, ws.ActionTopic(a.Id.String()), a)
}

// serve upgrades the request, sends the current state if there is one and
// keeps the connection registered on topic until the client goes away.
func (wsh *wsHandler) serve(c *gin.Context, topic string, initial any) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	listener := &deadlineConn{Conn: conn}
	wsh.notificationHub.RegisterListener(topic, listener)
	defer wsh.notificationHub.UnregisterListener(topic, listener)

	if initial != nil {
		if err := wsh.notificationHub.Send(listener, initial); err != nil {
			return
		}
	}

	for {
		var buffer any
		if err := conn.ReadJSON(&buffer); err != nil {
			log.Debug().Err(err).Str("topic", topic).Msg("Websocket closed")
			return
		}
	}
}
