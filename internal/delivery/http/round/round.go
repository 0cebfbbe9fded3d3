package http_round

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	http_room "github.com/humanbelnik/senryu/internal/delivery/http/room"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
	"github.com/sirupsen/logrus"
)

type Controller struct {
	usecase    *usecase_round.Usecase
	middleware *http_auth_middleware.Middleware
	logger     *logrus.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *logrus.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(
	usecase *usecase_round.Usecase,
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
	round := router.Group("/rooms/:room_id")
	{
		round.GET("/poem", c.poem)
		round.GET("/state", c.state)

		authorized := round.Group("")
		authorized.Use(c.middleware.AuthRequired())
		authorized.POST("/round", c.start)
		authorized.POST("/characters", c.submit)
	}
}

// Start
// @Summary Start the round
// @Description Owner only. Locks the room, shuffles members into the turn order and hands every member a senryu
// @Tags Round
// @Produce json
// @Param room_id path string true "Room id"
// @Success 201 {object} http_room.RoomDTO
// @Failure 403 {object} http_common.ErrorResponse "Not the owner"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Already started, empty room or lost race"
// @Security UserToken
// @Router /rooms/{room_id}/round [post]
func (c *Controller) start(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	round, err := c.usecase.Start(ctx, roomID, http_common.UserID(ctx))
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "start round")
		return
	}
	ctx.JSON(http.StatusCreated, http_room.ToRoomDTO(round.Room))
}

type SubmitRequestDTO struct {
	Character string `json:"character" binding:"required"`
}

type SubmitResponseDTO struct {
	Room      http_room.RoomDTO `json:"room"`
	SenryuID  string            `json:"senryu_id"`
	Index     int               `json:"index"`
	Advanced  bool              `json:"advanced"`
	Completed bool              `json:"completed"`
}

// Submit
// @Summary Submit a character
// @Description Writes one character into the current slot of the senryu the caller holds
// @Tags Round
// @Accept json
// @Produce json
// @Param room_id path string true "Room id"
// @Param request body SubmitRequestDTO true "Single character"
// @Success 201 {object} SubmitResponseDTO
// @Failure 400 {object} http_common.ErrorResponse "Not a single character"
// @Failure 403 {object} http_common.ErrorResponse "Not a participant"
// @Failure 409 {object} http_common.ErrorResponse "Already submitted, round complete or lost race"
// @Security UserToken
// @Router /rooms/{room_id}/characters [post]
func (c *Controller) submit(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	var req SubmitRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	sub, err := c.usecase.Submit(ctx, roomID, http_common.UserID(ctx), req.Character)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "submit character")
		return
	}

	ctx.JSON(http.StatusCreated, SubmitResponseDTO{
		Room:      http_room.ToRoomDTO(sub.Room),
		SenryuID:  sub.Character.SenryuID.String(),
		Index:     sub.Character.Index,
		Advanced:  sub.Advanced,
		Completed: sub.Completed,
	})
}

type LineDTO struct {
	SenryuID      string    `json:"senryu_id"`
	OriginUserID  string    `json:"origin_user_id"`
	CurrentUserID string    `json:"current_user_id"`
	Rows          [3]string `json:"rows"`
	Cells         []string  `json:"cells"`
}

type PoemDTO struct {
	RoomID string    `json:"room_id"`
	Phase  string    `json:"phase"`
	Lines  []LineDTO `json:"lines"`
}

func toLineDTO(l model.PoemLine) LineDTO {
	return LineDTO{
		SenryuID:      l.SenryuID.String(),
		OriginUserID:  l.OriginUserID.String(),
		CurrentUserID: l.CurrentUserID.String(),
		Rows:          l.Text(),
		Cells:         l.Cells[:],
	}
}

// Poem
// @Summary Senryus of the room
// @Description Every line with the characters written so far, in turn-order position
// @Tags Round
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {object} PoemDTO
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/poem [get]
func (c *Controller) poem(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	poem, err := c.usecase.Poem(ctx, roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "read poem")
		return
	}

	lines := make([]LineDTO, 0, len(poem.Lines))
	for _, l := range poem.Lines {
		lines = append(lines, toLineDTO(l))
	}
	ctx.JSON(http.StatusOK, PoemDTO{
		RoomID: poem.Room.ID.String(),
		Phase:  string(poem.Phase),
		Lines:  lines,
	})
}

type StateDTO struct {
	Room http_room.RoomDTO `json:"room"`
	// user id -> senryu id
	Holders map[string]string `json:"holders"`
	Waiting []string          `json:"waiting"`
}

// State
// @Summary Round state
// @Description Who holds which senryu and who has not yet written in the current slot
// @Tags Round
// @Produce json
// @Param room_id path string true "Room id"
// @Success 200 {object} StateDTO
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/state [get]
func (c *Controller) state(ctx *gin.Context) {
	roomID, ok := http_common.PathID(ctx, "room_id")
	if !ok {
		return
	}

	state, err := c.usecase.State(ctx, roomID)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "read round state")
		return
	}
	ctx.JSON(http.StatusOK, ToStateDTO(state))
}

func ToStateDTO(state usecase_round.State) StateDTO {
	holders := make(map[string]string, len(state.Holders))
	for userID, senryuID := range state.Holders {
		holders[userID.String()] = senryuID.String()
	}

	waiting := []uuid.UUID{}
	if state.Phase == model.PhaseInProgress {
		for _, id := range state.Room.Order {
			if !state.Room.HasCompleted(id) {
				waiting = append(waiting, id)
			}
		}
	}

	return StateDTO{
		Room:    http_room.ToRoomDTO(state.Room),
		Holders: holders,
		Waiting: http_room.IDStrings(waiting),
	}
}
