package http_access_middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
)

type AccessMiddlewareSuite struct {
	suite.Suite
}

func serve(enabled bool, method string) int {
	router := gin.New()
	router.Use(ReadOnly(enabled))
	router.Handle(method, "/rooms", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, "/rooms", nil))
	return rec.Code
}

func (s *AccessMiddlewareSuite) TestReadOnly(t provider.T) {
	assert.Equal(t, http.StatusOK, serve(false, http.MethodPost))
	assert.Equal(t, http.StatusOK, serve(true, http.MethodGet))
	assert.Equal(t, http.StatusServiceUnavailable, serve(true, http.MethodPost))
	assert.Equal(t, http.StatusServiceUnavailable, serve(true, http.MethodDelete))
}

func TestAccessMiddlewareSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.RunSuite(t, new(AccessMiddlewareSuite))
}
