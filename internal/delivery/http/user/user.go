package http_user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
	"github.com/sirupsen/logrus"
)

type Controller struct {
	usecase    *usecase_user.Usecase
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
	usecase *usecase_user.Usecase,
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
	users := router.Group("/users")
	{
		users.POST("", c.create)

		me := users.Group("/me")
		me.Use(c.middleware.AuthRequired())
		me.GET("", c.me)
		me.PATCH("", c.rename)
	}
}

type UserDTO struct {
	ID     string  `json:"id"`
	Name   *string `json:"name,omitempty"`
	RoomID *string `json:"room_id,omitempty"`
}

func ToUserDTO(u model.User) UserDTO {
	dto := UserDTO{
		ID:   u.ID.String(),
		Name: u.Name,
	}
	if u.RoomID != nil {
		id := u.RoomID.String()
		dto.RoomID = &id
	}
	return dto
}

type CreateRequestDTO struct {
	Name *string `json:"name"`
}

type CreateResponseDTO struct {
	User  UserDTO `json:"user"`
	Token string  `json:"token"`
}

// Create
// @Summary Register a user
// @Description Starts an app session. The token is returned both in the body and in X-user-token
// @Tags Users
// @Accept json
// @Produce json
// @Param request body CreateRequestDTO false "Optional display name"
// @Success 201 {object} CreateResponseDTO
// @Header 201 {string} X-user-token "Session token"
// @Failure 400 {object} http_common.ErrorResponse "Invalid name"
// @Failure 500 {object} http_common.ErrorResponse "Internal error"
// @Router /users [post]
func (c *Controller) create(ctx *gin.Context) {
	var req CreateRequestDTO
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: "invalid request format",
			})
			return
		}
	}

	user, token, err := c.usecase.Create(ctx, req.Name)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "create user")
		return
	}

	ctx.Header(http_common.TokenHeader, token)
	ctx.JSON(http.StatusCreated, CreateResponseDTO{
		User:  ToUserDTO(user),
		Token: token,
	})
}

// Me
// @Summary Current user
// @Tags Users
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 401 {object} http_common.ErrorResponse "Unauthorized"
// @Security UserToken
// @Router /users/me [get]
func (c *Controller) me(ctx *gin.Context) {
	user, err := c.usecase.Get(ctx, http_common.UserID(ctx))
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "get user")
		return
	}
	ctx.JSON(http.StatusOK, ToUserDTO(user))
}

type RenameRequestDTO struct {
	Name string `json:"name" binding:"required"`
}

// Rename
// @Summary Change display name
// @Tags Users
// @Accept json
// @Produce json
// @Param request body RenameRequestDTO true "New name"
// @Success 200 {object} UserDTO
// @Failure 400 {object} http_common.ErrorResponse "Invalid name"
// @Failure 401 {object} http_common.ErrorResponse "Unauthorized"
// @Security UserToken
// @Router /users/me [patch]
func (c *Controller) rename(ctx *gin.Context) {
	var req RenameRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	user, err := c.usecase.Rename(ctx, http_common.UserID(ctx), req.Name)
	if err != nil {
		http_common.Fail(ctx, c.logger, err, "rename user")
		return
	}
	ctx.JSON(http.StatusOK, ToUserDTO(user))
}
