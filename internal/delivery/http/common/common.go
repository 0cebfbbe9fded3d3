package http_common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
	"github.com/sirupsen/logrus"
)

const (
	TokenHeader = "X-user-token"
	UserIDKey   = "user_id"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

type statusMapping struct {
	err     error
	status  int
	message string
}

var mappings = []statusMapping{
	{usecase_room.ErrResourceNotFound, http.StatusNotFound, "not found"},
	{usecase_user.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},

	{usecase_room.ErrNotOwner, http.StatusForbidden, "only the room owner can do this"},
	{usecase_round.ErrNotParticipant, http.StatusForbidden, "not a participant of this round"},
	{usecase_round.ErrNotSenryuHolder, http.StatusForbidden, "not holding a senryu"},

	{usecase_room.ErrInvalidName, http.StatusBadRequest, "invalid room name"},
	{usecase_user.ErrInvalidName, http.StatusBadRequest, "invalid user name"},
	{usecase_round.ErrInvalidCharacter, http.StatusBadRequest, "character must be a single glyph"},

	{usecase_room.ErrRoomLocked, http.StatusConflict, "room is locked"},
	{usecase_room.ErrConfirmationRequired, http.StatusConflict, "round in progress, confirm to delete"},
	{usecase_round.ErrAlreadySubmitted, http.StatusConflict, "already submitted for this slot"},
	{usecase_round.ErrRoundComplete, http.StatusConflict, "round is complete"},
	{usecase_round.ErrNoParticipants, http.StatusConflict, "room has no participants"},
	{usecase_round.ErrInvalidState, http.StatusConflict, "room is not in a state for this"},
	{usecase_round.ErrRaceLost, http.StatusConflict, "room changed, try again"},
}

// Status maps a usecase error onto an HTTP status and a client-facing message.
// Anything unknown is an internal error.
func Status(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// Fail writes err as an ErrorResponse and aborts the chain. Server-side errors
// are logged at error level, client mistakes at debug.
func Fail(ctx *gin.Context, logger *logrus.Logger, err error, action string) {
	status, message := Status(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   ctx.FullPath(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("failed to " + action)
	} else {
		entry.Debug("failed to " + action)
	}

	ctx.AbortWithStatusJSON(status, ErrorResponse{Message: message})
}

// PathID parses a uuid path parameter, answering 400 when it is malformed.
func PathID(ctx *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(param))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "invalid " + param,
		})
		return uuid.Nil, false
	}
	return id, true
}

// UserID returns the caller resolved by the auth middleware.
func UserID(ctx *gin.Context) uuid.UUID {
	v, ok := ctx.Get(UserIDKey)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}
