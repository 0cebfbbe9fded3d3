package infra_session_cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SessionCacheSuite struct {
	suite.Suite
}

func initDriver(t provider.T) (*Driver, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return New(client, "session"), mr
}

func (s *SessionCacheSuite) TestSetGet(t provider.T) {
	t.Parallel()
	d, mr := initDriver(t)

	require.NoError(t, d.Set("token", "user", time.Minute))

	v, err := d.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "user", v)
	assert.True(t, mr.Exists("session:token"))
}

func (s *SessionCacheSuite) TestMissingKey(t provider.T) {
	t.Parallel()
	d, _ := initDriver(t)

	v, err := d.Get("nope")

	assert.NoError(t, err)
	assert.Empty(t, v)
}

func (s *SessionCacheSuite) TestExpiryAndRefresh(t provider.T) {
	t.Parallel()
	d, mr := initDriver(t)

	require.NoError(t, d.Set("token", "user", time.Minute))
	mr.FastForward(50 * time.Second)
	require.NoError(t, d.Refresh("token", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("session:token"))

	mr.FastForward(50 * time.Second)
	v, err := d.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "user", v)

	mr.FastForward(time.Minute)
	v, err = d.Get("token")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSessionCacheSuite(t *testing.T) {
	suite.RunSuite(t, new(SessionCacheSuite))
}
