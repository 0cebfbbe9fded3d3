package http_user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
	repo_mocks "github.com/humanbelnik/senryu/internal/usecase/user/mocks/user/repository"
	session_mocks "github.com/humanbelnik/senryu/internal/usecase/user/mocks/user/session"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type UserControllerSuite struct {
	suite.Suite
}

type resources struct {
	router   *gin.Engine
	userRepo *repo_mocks.UserRepository
	cache    *session_mocks.SessionCache
}

func initResources(t provider.T) *resources {
	userRepo := repo_mocks.NewUserRepository(t)
	cache := session_mocks.NewSessionCache(t)
	logger, _ := test.NewNullLogger()
	ttl := time.Hour

	uc := usecase_user.New(userRepo, cache, &ttl)
	mw := http_auth_middleware.New(uc, http_auth_middleware.WithLogger(logger))

	router := gin.New()
	New(uc, mw, WithLogger(logger)).RegisterRoutes(router.Group("/api/v1"))

	return &resources{
		router:   router,
		userRepo: userRepo,
		cache:    cache,
	}
}

func (r *resources) do(method string, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(http_common.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)
	return rec
}

func (s *UserControllerSuite) TestCreate(t provider.T) {
	t.Parallel()

	t.Run("Should issue session token", func(t provider.T) {
		t.Parallel()
		r := initResources(t)

		r.userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Name != nil && *u.Name == "Basho"
		})).Return(nil).Once()
		r.cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

		name := " Basho "
		rec := r.do(http.MethodPost, "/users", CreateRequestDTO{Name: &name}, "")

		require.Equal(t, http.StatusCreated, rec.Code)
		var dto CreateResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
		assert.NotEmpty(t, dto.Token)
		assert.Equal(t, dto.Token, rec.Header().Get(http_common.TokenHeader))
		require.NotNil(t, dto.User.Name)
		assert.Equal(t, "Basho", *dto.User.Name)
	})

	t.Run("Should accept empty body", func(t provider.T) {
		t.Parallel()
		r := initResources(t)

		r.userRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		r.cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

		rec := r.do(http.MethodPost, "/users", nil, "")

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func (s *UserControllerSuite) TestMe(t provider.T) {
	t.Parallel()

	t.Run("Should resolve token to user", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		roomID := uuid.New()
		user := model.User{ID: uuid.New(), RoomID: &roomID}

		r.cache.On("Get", "tok").Return(user.ID.String(), nil).Once()
		r.cache.On("Refresh", "tok", time.Hour).Return(nil).Once()
		r.userRepo.On("ByID", mock.Anything, user.ID).Return(user, nil).Once()

		rec := r.do(http.MethodGet, "/users/me", nil, "tok")

		require.Equal(t, http.StatusOK, rec.Code)
		var dto UserDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
		assert.Equal(t, user.ID.String(), dto.ID)
		require.NotNil(t, dto.RoomID)
		assert.Equal(t, roomID.String(), *dto.RoomID)
	})

	t.Run("Should reject expired token", func(t provider.T) {
		t.Parallel()
		r := initResources(t)

		r.cache.On("Get", "old").Return("", nil).Once()

		rec := r.do(http.MethodGet, "/users/me", nil, "old")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should reject blank name", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		userID := uuid.New()

		r.cache.On("Get", "tok").Return(userID.String(), nil).Once()
		r.cache.On("Refresh", "tok", time.Hour).Return(nil).Once()

		rec := r.do(http.MethodPatch, "/users/me", RenameRequestDTO{Name: "   "}, "tok")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserControllerSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.RunSuite(t, new(UserControllerSuite))
}
