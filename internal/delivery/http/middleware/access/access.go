package http_access_middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
)

// ReadOnly rejects every write while enabled. Rooms, poems and the feed stay
// readable, so a node can be drained without cutting spectators off.
func ReadOnly(enabled bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !enabled {
			ctx.Next()
			return
		}

		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			ctx.Next()
			return
		}

		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, http_common.ErrorResponse{
			Message: "server is read-only",
		})
	}
}
