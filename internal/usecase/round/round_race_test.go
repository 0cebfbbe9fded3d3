package usecase_round

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	service_rotation "github.com/humanbelnik/senryu/internal/service/rotation"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps one room in memory and honours the version check the way
// the postgres driver does.
type memStore struct {
	mu         sync.Mutex
	room       model.Room
	users      []model.User
	senryus    []model.Senryu
	characters []model.Character
	advances   int

	// After gateReads(n) the next n reads of SenryusByRoom block until all of
	// them happened, so concurrent submissions compute from one snapshot.
	gate  sync.WaitGroup
	gated atomic.Int32
	limit int32
}

func newMemStore(owner uuid.UUID, n int) *memStore {
	s := &memStore{
		room: model.Room{
			ID:               uuid.New(),
			Name:             "room",
			OwnerID:          owner,
			Order:            []uuid.UUID{},
			CompletedUserIDs: []uuid.UUID{},
		},
	}
	s.users = append(s.users, model.User{ID: owner, RoomID: &s.room.ID})
	for range n - 1 {
		s.users = append(s.users, model.User{ID: uuid.New(), RoomID: &s.room.ID})
	}
	return s
}

func (s *memStore) gateReads(n int) {
	s.gated.Store(0)
	s.limit = int32(n)
	s.gate.Add(n)
}

func (s *memStore) ByID(_ context.Context, id uuid.UUID) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.room.ID {
		return model.Room{}, ErrResourceNotFound
	}
	return s.room.Clone(), nil
}

func (s *memStore) ListByRoom(_ context.Context, _ uuid.UUID) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users), nil
}

func (s *memStore) StartRound(_ context.Context, expectedVersion int64, room model.Room, senryus []model.Senryu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room.Version != expectedVersion || s.room.Locked {
		return ErrRaceLost
	}
	s.room = room.Clone()
	s.senryus = slices.Clone(senryus)
	return nil
}

func (s *memStore) ApplySubmission(_ context.Context, expectedVersion int64, room model.Room, character model.Character, rotated []model.Senryu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room.Version != expectedVersion {
		return ErrRaceLost
	}
	for _, c := range s.characters {
		if c.SenryuID == character.SenryuID && c.Index == character.Index {
			return ErrRaceLost
		}
	}
	if room.CurrentIndex > s.room.CurrentIndex {
		s.advances++
	}
	s.room = room.Clone()
	s.characters = append(s.characters, character)
	if rotated != nil {
		s.senryus = slices.Clone(rotated)
	}
	return nil
}

func (s *memStore) SenryusByRoom(_ context.Context, _ uuid.UUID) ([]model.Senryu, error) {
	if s.gated.Add(1) <= s.limit {
		s.gate.Done()
		s.gate.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.senryus), nil
}

func (s *memStore) CharactersByRoom(_ context.Context, _ uuid.UUID) ([]model.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.characters), nil
}

type RoundRaceSuite struct {
	suite.Suite
}

func newRaceUsecase(store *memStore) *Usecase {
	logger, _ := test.NewNullLogger()
	return New(
		service_rotation.New(service_rotation.WithShuffler(noShuffle)),
		store, store, store, nil,
		WithLogger(logger),
	)
}

func (s *RoundRaceSuite) TestConcurrentFinalSubmissions(t provider.T) {
	t.Parallel()

	t.Run("Should advance exactly once when two members finish a slot together", func(t provider.T) {
		ctx := context.Background()
		owner := uuid.New()
		store := newMemStore(owner, 3)
		uc := newRaceUsecase(store)

		round, err := uc.Start(ctx, store.room.ID, owner)
		require.NoError(t, err)
		order := round.Room.Order

		_, err = uc.Submit(ctx, store.room.ID, order[0], "一")
		require.NoError(t, err)

		store.gateReads(2)
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, u := range order[1:] {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = uc.Submit(ctx, store.room.ID, u, "二")
			}()
		}
		wg.Wait()

		assert.NoError(t, errs[0])
		assert.NoError(t, errs[1])
		assert.Equal(t, 1, store.room.CurrentIndex)
		assert.Empty(t, store.room.CompletedUserIDs)
		assert.Equal(t, 1, store.advances)
		assert.Len(t, store.characters, 3)
	})

	t.Run("Should advance exactly once when one member submits the last character twice", func(t provider.T) {
		ctx := context.Background()
		owner := uuid.New()
		store := newMemStore(owner, 2)
		uc := newRaceUsecase(store)

		round, err := uc.Start(ctx, store.room.ID, owner)
		require.NoError(t, err)
		order := round.Room.Order

		_, err = uc.Submit(ctx, store.room.ID, order[0], "一")
		require.NoError(t, err)

		store.gateReads(2)
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = uc.Submit(ctx, store.room.ID, order[1], "二")
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrAlreadySubmitted)
				failed++
			}
		}
		assert.Equal(t, 1, failed)
		assert.Equal(t, 1, store.room.CurrentIndex)
		assert.Equal(t, 1, store.advances)
		assert.Len(t, store.characters, 2)
	})
}

func (s *RoundRaceSuite) TestFullRound(t provider.T) {
	t.Parallel()

	ctx := context.Background()
	owner := uuid.New()
	store := newMemStore(owner, 3)
	uc := newRaceUsecase(store)

	round, err := uc.Start(ctx, store.room.ID, owner)
	require.NoError(t, err)
	order := round.Room.Order

	for slot := range model.PoemLength {
		for _, u := range order {
			_, err := uc.Submit(ctx, store.room.ID, u, "句")
			require.NoError(t, err, "slot %d", slot)
		}
	}

	_, err = uc.Submit(ctx, store.room.ID, order[0], "余")
	assert.ErrorIs(t, err, ErrRoundComplete)

	poem, err := uc.Poem(ctx, store.room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseComplete, poem.Phase)
	require.Len(t, poem.Lines, len(order))
	for _, line := range poem.Lines {
		for _, cell := range line.Cells {
			assert.Equal(t, "句", cell)
		}
	}

	// Line started by order[k] was written at slot s by order[(k+s) mod n].
	for _, c := range store.characters {
		var k int
		for i, line := range poem.Lines {
			if line.SenryuID == c.SenryuID {
				k = slices.Index(order, poem.Lines[i].OriginUserID)
			}
		}
		assert.Equal(t, order[(k+c.Index)%len(order)], c.UserID)
	}

	state, err := uc.State(ctx, store.room.ID)
	require.NoError(t, err)
	assert.Len(t, state.Holders, len(order))
}

func TestRoundRaceSuite(t *testing.T) {
	suite.RunSuite(t, new(RoundRaceSuite))
}
