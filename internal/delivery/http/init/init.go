package http_init

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const apiPrefix = "/api/v1"

type Controller interface {
	RegisterRoutes(router *gin.RouterGroup)
}

type ControllerPool struct {
	pool   []Controller
	rg     *gin.RouterGroup
	engine *gin.Engine
	logger *logrus.Logger
}

// NewControllerPool builds the engine with recovery and the given middleware
// applied to every route under the API prefix.
func NewControllerPool(logger *logrus.Logger, middleware ...gin.HandlerFunc) *ControllerPool {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware...)
	engine.GET("/healthz", func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})

	return &ControllerPool{
		pool:   make([]Controller, 0, 10),
		rg:     engine.Group(apiPrefix),
		engine: engine,
		logger: logger,
	}
}

func (pool *ControllerPool) Add(c Controller) {
	pool.pool = append(pool.pool, c)
}

func (pool *ControllerPool) Register() {
	for _, c := range pool.pool {
		c.RegisterRoutes(pool.rg)
	}
}

func (pool *ControllerPool) Handler() http.Handler {
	return pool.engine
}

// RunAll serves until ctx is done, then shuts the server down gracefully.
func (pool *ControllerPool) RunAll(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: pool.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		pool.logger.WithField("port", port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool.logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}
