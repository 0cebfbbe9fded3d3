package ws_room

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	http_round "github.com/humanbelnik/senryu/internal/delivery/http/round"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Snapshotter interface {
	State(ctx context.Context, roomID uuid.UUID) (usecase_round.State, error)
}

type Controller struct {
	hub        *Hub
	snapshots  Snapshotter
	middleware *http_auth_middleware.Middleware
}

func NewController(
	hub *Hub,
	snapshots Snapshotter,
	middleware *http_auth_middleware.Middleware,
) *Controller {
	return &Controller{
		hub:        hub,
		snapshots:  snapshots,
		middleware: middleware,
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/rooms/:room_id/ws", c.middleware.AuthRequired(), c.serve)
}

// Serve
// @Summary Room feed
// @Description Upgrades to a websocket. The first message is a SNAPSHOT of the round state, room events follow. The token may be passed as ?token=
// @Tags Rooms
// @Param room_id path string true "Room id"
// @Success 101
// @Failure 401 {object} http_common.ErrorResponse "Unauthorized"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Security UserToken
// @Router /rooms/{room_id}/ws [get]
func (c *Controller) serve(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	client := NewClient(c.hub, roomID, http_common.UserID(ctx))
	err := c.hub.Attach(ctx.Request.Context(), client, func(reqCtx context.Context) (Event, int64, error) {
		state, err := c.snapshots.State(reqCtx, roomID)
		if err != nil {
			return Event{}, 0, err
		}
		return Event{Type: EventSnapshot, Payload: http_round.ToStateDTO(state)}, state.Room.Version, nil
	})
	if err != nil {
		http_common.Fail(ctx, c.hub.logger, err, "open room feed")
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		c.hub.logger.WithError(err).Warn("failed to upgrade to websocket")
		c.hub.Detach(client)
		return
	}

	client.serve(conn)
}
