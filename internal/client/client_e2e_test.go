package client

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/humanbelnik/senryu/internal/model"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server, e.g. SENRYU_E2E_URL=http://localhost:8080.
const e2eURLEnv = "SENRYU_E2E_URL"

type E2ERoundFlowSuite struct {
	suite.Suite
	baseURL string
}

func (s *E2ERoundFlowSuite) BeforeAll(t provider.T) {
	s.baseURL = os.Getenv(e2eURLEnv)
}

func (s *E2ERoundFlowSuite) TestFullRound(t provider.T) {
	if s.baseURL == "" {
		t.Skip(e2eURLEnv + " is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	owner, guest := New(s.baseURL), New(s.baseURL)
	_, err := owner.Register(ctx, "owner")
	require.NoError(t, err)
	_, err = guest.Register(ctx, "guest")
	require.NoError(t, err)

	room, err := owner.CreateRoom(ctx, "e2e")
	require.NoError(t, err)
	defer func() { _ = owner.DeleteRoom(context.Background(), room.ID, true) }()

	_, err = owner.Join(ctx, room.ID)
	require.NoError(t, err)
	_, err = guest.Join(ctx, room.ID)
	require.NoError(t, err)

	events, err := guest.Follow(ctx, room.ID)
	require.NoError(t, err)
	first := <-events
	assert.Equal(t, "SNAPSHOT", first.Type)

	started, err := owner.StartRound(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, started.Order, 2)

	for slot := 0; slot < model.PoemLength; slot++ {
		_, err := owner.Submit(ctx, room.ID, "あ")
		require.NoError(t, err, "owner at slot %d", slot)
		sub, err := guest.Submit(ctx, room.ID, "い")
		require.NoError(t, err, "guest at slot %d", slot)
		assert.True(t, sub.Advanced)
	}

	_, err = owner.Submit(ctx, room.ID, "う")
	assert.Error(t, err)

	poem, err := guest.Poem(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseComplete), poem.Phase)
	for _, line := range poem.Lines {
		assert.Len(t, []rune(strings.Join(line.Rows[:], "")), model.PoemLength)
	}
}

func TestE2ERoundFlowSuite(t *testing.T) {
	suite.RunSuite(t, new(E2ERoundFlowSuite))
}
