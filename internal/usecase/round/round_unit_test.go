package usecase_round

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	service_rotation "github.com/humanbelnik/senryu/internal/service/rotation"
	member_mocks "github.com/humanbelnik/senryu/internal/usecase/round/mocks/round/member"
	publisher_mocks "github.com/humanbelnik/senryu/internal/usecase/round/mocks/round/publisher"
	repo_mocks "github.com/humanbelnik/senryu/internal/usecase/round/mocks/round/repository"
	room_mocks "github.com/humanbelnik/senryu/internal/usecase/round/mocks/round/room"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type UsecaseRoundUnitSuite struct {
	suite.Suite
}

type resources struct {
	usecase    *Usecase
	roomRepo   *room_mocks.RoomRepository
	memberRepo *member_mocks.MemberRepository
	roundRepo  *repo_mocks.RoundRepository
	publisher  *publisher_mocks.Publisher
	ctx        context.Context
}

func noShuffle(int, func(i, j int)) {}

func initResources(t provider.T) *resources {
	roomRepo := room_mocks.NewRoomRepository(t)
	memberRepo := member_mocks.NewMemberRepository(t)
	roundRepo := repo_mocks.NewRoundRepository(t)
	publisher := publisher_mocks.NewPublisher(t)
	logger, _ := test.NewNullLogger()

	return &resources{
		usecase: New(
			service_rotation.New(service_rotation.WithShuffler(noShuffle)),
			roomRepo, memberRepo, roundRepo, publisher,
			WithLogger(logger),
		),
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		roundRepo:  roundRepo,
		publisher:  publisher,
		ctx:        context.Background(),
	}
}

func eventOf(t model.EventType) interface{} {
	return mock.MatchedBy(func(e model.RoomEvent) bool { return e.Type == t })
}

func members(roomID uuid.UUID, n int) []model.User {
	users := make([]model.User, n)
	for i := range users {
		users[i] = model.User{ID: uuid.New(), RoomID: &roomID}
	}
	return users
}

// lockedRoom is a room mid-round at the given slot with a one-senryu-per-user layout.
func lockedRoom(order []uuid.UUID, index int, completed ...uuid.UUID) (model.Room, []model.Senryu) {
	room := model.Room{
		ID:               uuid.New(),
		Name:             "room",
		OwnerID:          order[0],
		Locked:           true,
		CurrentIndex:     index,
		Order:            order,
		CompletedUserIDs: append([]uuid.UUID{}, completed...),
		Version:          7,
	}
	senryus := make([]model.Senryu, len(order))
	for i, id := range order {
		senryus[i] = model.Senryu{ID: uuid.New(), RoomID: room.ID, CurrentUserID: id, OriginUserID: id}
	}
	return room, senryus
}

func (s *UsecaseRoundUnitSuite) TestStart(t provider.T) {
	t.Parallel()

	t.Run("Should start round over current members", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		owner := uuid.New()
		room := model.Room{ID: uuid.New(), OwnerID: owner, Version: 3}
		users := members(room.ID, 3)

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.memberRepo.On("ListByRoom", r.ctx, room.ID).Return(users, nil).Once()
		r.roundRepo.On("StartRound", r.ctx, int64(3), mock.MatchedBy(func(rm model.Room) bool {
			return rm.Locked && rm.Version == 4 && len(rm.Order) == 3
		}), mock.AnythingOfType("[]model.Senryu")).Return(nil).Once()
		r.publisher.On("Publish", r.ctx, eventOf(model.EventRoundStarted)).Return(nil).Once()

		round, err := r.usecase.Start(r.ctx, room.ID, owner)

		require.NoError(t, err)
		assert.Len(t, round.Senryus, 3)
		assert.Equal(t, model.PhaseInProgress, round.Room.Phase())
	})

	t.Run("Should refuse non owner", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		room := model.Room{ID: uuid.New(), OwnerID: uuid.New()}

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()

		_, err := r.usecase.Start(r.ctx, room.ID, uuid.New())

		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("Should refuse empty room", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		owner := uuid.New()
		room := model.Room{ID: uuid.New(), OwnerID: owner}

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.memberRepo.On("ListByRoom", r.ctx, room.ID).Return([]model.User{}, nil).Once()

		_, err := r.usecase.Start(r.ctx, room.ID, owner)

		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, err, service_rotation.ErrNoParticipants)
	})

	t.Run("Should retry once and report second race loss", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		owner := uuid.New()
		room := model.Room{ID: uuid.New(), OwnerID: owner}
		users := members(room.ID, 2)

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Twice()
		r.memberRepo.On("ListByRoom", r.ctx, room.ID).Return(users, nil).Twice()
		r.roundRepo.On("StartRound", r.ctx, int64(0), mock.Anything, mock.Anything).Return(ErrRaceLost).Twice()

		_, err := r.usecase.Start(r.ctx, room.ID, owner)

		assert.ErrorIs(t, err, ErrRaceLost)
	})
}

func (s *UsecaseRoundUnitSuite) TestSubmit(t provider.T) {
	t.Parallel()

	t.Run("Should reject multi glyph input without touching storage", func(t provider.T) {
		t.Parallel()
		r := initResources(t)

		for _, in := range []string{"", "ab", " ", "\n", "古池"} {
			_, err := r.usecase.Submit(r.ctx, uuid.New(), uuid.New(), in)
			assert.ErrorIs(t, err, ErrInvalidCharacter, in)
		}
	})

	t.Run("Should record character without advancing", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		order := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		room, senryus := lockedRoom(order, 0)

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()
		r.roundRepo.On("ApplySubmission", r.ctx, int64(7), mock.MatchedBy(func(rm model.Room) bool {
			return rm.CurrentIndex == 0 && len(rm.CompletedUserIDs) == 1
		}), mock.MatchedBy(func(c model.Character) bool {
			return c.SenryuID == senryus[0].ID && c.Index == 0 && c.Character == "古"
		}), []model.Senryu(nil)).Return(nil).Once()
		r.publisher.On("Publish", r.ctx, eventOf(model.EventCharacterSubmitted)).Return(nil).Once()

		sub, err := r.usecase.Submit(r.ctx, room.ID, order[0], "古")

		require.NoError(t, err)
		assert.False(t, sub.Advanced)
	})

	t.Run("Should advance rotate and complete on last slot", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		order := []uuid.UUID{uuid.New(), uuid.New()}
		room, senryus := lockedRoom(order, model.PoemLength-1, order[0])

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()
		r.roundRepo.On("ApplySubmission", r.ctx, int64(7), mock.MatchedBy(func(rm model.Room) bool {
			return rm.CurrentIndex == model.PoemLength && len(rm.CompletedUserIDs) == 0
		}), mock.AnythingOfType("model.Character"), mock.MatchedBy(func(rotated []model.Senryu) bool {
			return len(rotated) == 2 &&
				rotated[0].CurrentUserID == order[1] &&
				rotated[1].CurrentUserID == order[0]
		})).Return(nil).Once()
		r.publisher.On("Publish", r.ctx, eventOf(model.EventCharacterSubmitted)).Return(nil).Once()
		r.publisher.On("Publish", r.ctx, eventOf(model.EventSlotAdvanced)).Return(nil).Once()
		r.publisher.On("Publish", r.ctx, eventOf(model.EventRoundCompleted)).Return(nil).Once()

		sub, err := r.usecase.Submit(r.ctx, room.ID, order[1], "や")

		require.NoError(t, err)
		assert.True(t, sub.Advanced)
		assert.True(t, sub.Completed)
	})

	t.Run("Should reject second submission for the slot", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		order := []uuid.UUID{uuid.New(), uuid.New()}
		room, senryus := lockedRoom(order, 4, order[0])

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()

		_, err := r.usecase.Submit(r.ctx, room.ID, order[0], "や")

		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("Should reject outsider", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		order := []uuid.UUID{uuid.New(), uuid.New()}
		room, senryus := lockedRoom(order, 0)

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()

		_, err := r.usecase.Submit(r.ctx, room.ID, uuid.New(), "や")

		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("Should not retry onto the next slot and report the slot as written", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		order := []uuid.UUID{uuid.New(), uuid.New()}
		room, senryus := lockedRoom(order, 3, order[0])
		moved := room.Clone()
		moved.CurrentIndex = 4
		moved.CompletedUserIDs = []uuid.UUID{}
		moved.Version = 8

		r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
		r.roomRepo.On("ByID", r.ctx, room.ID).Return(moved, nil).Once()
		r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()
		r.roundRepo.On("ApplySubmission", r.ctx, int64(7), mock.Anything, mock.Anything, mock.Anything).
			Return(ErrRaceLost).Once()

		_, err := r.usecase.Submit(r.ctx, room.ID, order[1], "や")

		assert.ErrorIs(t, err, ErrAlreadySubmitted)
		r.roundRepo.AssertNumberOfCalls(t, "ApplySubmission", 1)
	})

	t.Run("Should wrap storage failure as internal", func(t provider.T) {
		t.Parallel()
		r := initResources(t)
		roomID := uuid.New()

		r.roomRepo.On("ByID", r.ctx, roomID).Return(model.Room{}, errors.New("db down")).Once()

		_, err := r.usecase.Submit(r.ctx, roomID, uuid.New(), "や")

		assert.ErrorIs(t, err, ErrInternal)
	})
}

func (s *UsecaseRoundUnitSuite) TestPoem(t provider.T) {
	t.Parallel()

	r := initResources(t)
	order := []uuid.UUID{uuid.New(), uuid.New()}
	room, senryus := lockedRoom(order, 1)
	characters := []model.Character{
		{SenryuID: senryus[0].ID, Index: 0, Character: "古", UserID: order[0]},
		{SenryuID: senryus[1].ID, Index: 0, Character: "池", UserID: order[1]},
	}

	r.roomRepo.On("ByID", r.ctx, room.ID).Return(room, nil).Once()
	r.roundRepo.On("SenryusByRoom", r.ctx, room.ID).Return(senryus, nil).Once()
	r.roundRepo.On("CharactersByRoom", r.ctx, room.ID).Return(characters, nil).Once()

	poem, err := r.usecase.Poem(r.ctx, room.ID)

	require.NoError(t, err)
	require.Len(t, poem.Lines, 2)
	assert.Equal(t, model.PhaseInProgress, poem.Phase)
	assert.Equal(t, "古", poem.Lines[0].Text()[0])
	assert.Equal(t, "池", poem.Lines[1].Text()[0])
}

func TestUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(UsecaseRoundUnitSuite))
}
