package http_room

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	http_user "github.com/humanbelnik/senryu/internal/delivery/http/user"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type Presence interface {
	Online(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

type Controller struct {
	usecase    *usecase_room.Usecase
	middleware *http_auth_middleware.Middleware
	presence   Presence
	logger     *logrus.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *logrus.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPresence marks participants with an open room socket as online.
func WithPresence(p Presence) ControllerOption {
	return func(c *Controller) {
		c.presence = p
	}
}

func New(
	usecase *usecase_room.Usecase,
	middleware *http_auth_middleware.Middleware,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		usecase:    usecase,
		middleware: middleware,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms")
	{
		rooms.GET("", c.list)
		rooms.GET("/:room_id", c.get)
		rooms.GET("/:room_id/participants", c.participants)
		rooms.GET("/:room_id/qr", c.qr)

		authorized := rooms.Group("")
		authorized.Use(c.middleware.AuthRequired())
		authorized.POST("", c.create)
		authorized.DELETE("/:room_id", c.delete)
		authorized.POST("/:room_id/participations", c.join)
		authorized.DELETE("/:room_id/participations", c.leave)
	}
}

type RoomDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	OwnerID          string   `json:"owner_id"`
	Locked           bool     `json:"locked"`
	Phase            string   `json:"phase"`
	CurrentIndex     int      `json:"current_index"`
	Order            []string `json:"order"`
	CompletedUserIDs []string `json:"completed_user_ids"`
	Version          int64    `json:"version"`
	CreatedAt        string   `json:"created_at"`
}

func ToRoomDTO(r model.Room) RoomDTO {
	return RoomDTO{
		ID:               r.ID.String(),
		Name:             r.Name,
		OwnerID:          r.OwnerID.String(),
		Locked:           r.Locked,
		Phase:            string(r.Phase()),
		CurrentIndex:     r.CurrentIndex,
		Order:            IDStrings(r.Order),
		CompletedUserIDs: IDStrings(r.CompletedUserIDs),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func IDStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type CreateRequestDTO struct {
	Name string `json:"name" binding:"required"`
}

// Create
// @Summary Create a room
// @Description Creates an open room owned by the caller. The owner does not join automatically
// @Tags Rooms
// @Accept json
// @Produce json
// @Param request body CreateRequestDTO true "Room name"
// @Success 201 {object} RoomDTO
// @Failure 400 {object} http_common.ErrorResponse "Invalid name"
// @Failure 401 {object} http_common.ErrorResponse "Unauthorized"
// @Security UserToken
// @Router /rooms [post]
func (c *Controller) create(ctx *gin.Context) {
	var req CreateRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	room, err := c.usecase.Create(ctx, req.Name, http_common.UserID(ctx))
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "create room")
		return
	}
	ctx.JSON(http.StatusCreated, ToRoomDTO(room))
}

// List
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Success 200 {array} RoomDTO
// @Router /rooms [get]
func (c *Controller) list(ctx *gin.Context) {
	rooms, err := c.usecase.List(ctx)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "list rooms")
		return
	}

	dtos := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		dtos = append(dtos, ToRoomDTO(r))
	}
	ctx.JSON(http.StatusOK, dtos)
}

// Get
// @Summary Get a room
// @Tags Rooms
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {object} RoomDTO
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id} [get]
func (c *Controller) get(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	room, err := c.usecase.Get(ctx, roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "get room")
		return
	}
	ctx.JSON(http.StatusOK, ToRoomDTO(room))
}

// Delete
// @Summary Delete a room
// @Description Owner only. A room with a round in progress needs confirm=true
// @Tags Rooms
// @Param room_id path string true "Room id"
// @Param confirm query bool false "Confirm deleting a locked room"
// @Success 204
// @Failure 403 {object} http_common.ErrorResponse "Not the owner"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Confirmation required"
// @Security UserToken
// @Router /rooms/{room_id} [delete]
func (c *Controller) delete(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}
	confirm := strings.EqualFold(ctx.Query("confirm"), "true")

	if err := c.usecase.Delete(ctx, roomID, http_common.UserID(ctx), confirm); err != nil {
		http_common.Fail(ctx, c.logger, err, "delete room")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Join
// @Summary Join a room
// @Description Moves the caller into the room. Joining a room the caller is already in is a no-op
// @Tags Rooms
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {object} http_user.UserDTO
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Room is locked"
// @Security UserToken
// @Router /rooms/{room_id}/participations [post]
func (c *Controller) join(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	user, err := c.usecase.Join(ctx, http_common.UserID(ctx), roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "join room")
		return
	}
	ctx.JSON(http.StatusOK, http_user.ToUserDTO(user))
}

// Leave
// @Summary Leave the current room
// @Description Ignored while the room is locked; the returned user shows whether the caller is still in it
// @Tags Rooms
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {object} http_user.UserDTO
// @Security UserToken
// @Router /rooms/{room_id}/participations [delete]
func (c *Controller) leave(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	left, err := c.usecase.LeaveRoom(ctx, http_common.UserID(ctx), roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "leave room")
		return
	}
	ctx.JSON(http.StatusOK, http_user.ToUserDTO(left))
}

type ParticipantDTO struct {
	http_user.UserDTO
	Online bool `json:"online"`
}

// Participants
// @Summary Room members
// @Tags Rooms
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {array} ParticipantDTO
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/participants [get]
func (c *Controller) participants(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	users, err := c.usecase.Participants(ctx, roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "list participants")
		return
	}

	var online []uuid.UUID
	if c.presence != nil {
		online, err = c.presence.Online(ctx, roomID)
		if err != nil {
			// Presence is advisory, the member list is still correct.
			c.logger.WithError(err).WithField("room_id", roomID).Warn("failed to read presence")
		}
	}

	dtos := make([]ParticipantDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, ParticipantDTO{
			UserDTO: http_user.ToUserDTO(u),
			Online:  slices.Contains(online, u.ID),
		})
	}
	ctx.JSON(http.StatusOK, dtos)
}

// QR
// @Summary Room QR code
// @Description PNG QR code of the room URL, for joining from a phone
// @Tags Rooms
// @Produce png
// @Param room_id path string true "Room id"
// @Success 200
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/qr [get]
func (c *Controller) qr(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}
	if _, err := c.usecase.Get(ctx, roomID); err != nil {
		http_common.Fail(ctx, c.logger, err, "render room qr")
		return
	}

	png, err := qrcode.Encode(roomURL(ctx.Request), qrcode.Medium, qrSize)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "render room qr")
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// roomURL is the request URL without its trailing /qr, honouring a proxy's
// X-Forwarded-Proto.
func roomURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")
}
