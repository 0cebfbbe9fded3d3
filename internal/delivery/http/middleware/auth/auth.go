package http_auth_middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
	"github.com/sirupsen/logrus"
)

type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

type Middleware struct {
	authenticator Authenticator
	logger        *logrus.Logger
}

type Option func(*Middleware)

func WithLogger(logger *logrus.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func New(
	authenticator Authenticator,
	opts ...Option,
) *Middleware {
	m := &Middleware{
		authenticator: authenticator,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AuthRequired resolves the session token to a user id and stores it under
// http_common.UserIDKey. Websocket clients cannot set headers from a browser,
// so the token is also accepted as a query parameter.
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.GetHeader(http_common.TokenHeader)
		if token == "" {
			token = ctx.Query("token")
		}
		if token == "" {
			m.logger.WithField("path", ctx.FullPath()).Debug("no session token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, http_common.ErrorResponse{
				Message: "no " + http_common.TokenHeader + " header",
			})
			return
		}

		userID, err := m.authenticator.Authenticate(token)
		if err != nil {
			if errors.Is(err, usecase_user.ErrUnauthorized) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, http_common.ErrorResponse{
					Message: "invalid token",
				})
				return
			}
			m.logger.WithError(err).Error("failed to authenticate")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, http_common.ErrorResponse{
				Message: "internal error",
			})
			return
		}

		ctx.Set(http_common.UserIDKey, userID)
		ctx.Next()
	}
}
