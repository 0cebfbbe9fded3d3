package service_rotation

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
)

var (
	ErrInvalidState         = errors.New("invalid room state")
	ErrNoParticipants       = errors.New("no participants")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrAlreadySubmitted     = errors.New("already submitted for current slot")
	ErrRoundComplete        = errors.New("round complete")
	ErrNotParticipant       = errors.New("user is not in turn order")
	ErrNotSenryuHolder      = errors.New("user does not hold this senryu")
)

// Shuffler permutes n elements through swap. rand.Shuffle fits.
type Shuffler func(n int, swap func(i, j int))

// Engine holds no state of its own: every method works on the snapshot it is
// given and returns new values, so it is safe for concurrent use.
type Engine struct {
	shuffle Shuffler
	newID   func() uuid.UUID
}

type Option func(*Engine)

func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		e.shuffle = s
	}
}

func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		shuffle: rand.Shuffle,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Round struct {
	Room    model.Room
	Senryus []model.Senryu
}

func (e *Engine) StartRound(room model.Room, participantIDs []uuid.UUID) (Round, error) {
	if room.Locked {
		return Round{}, ErrInvalidState
	}
	if len(participantIDs) == 0 {
		return Round{}, fmt.Errorf("%w: %w", ErrInvalidState, ErrNoParticipants)
	}

	seen := make(map[uuid.UUID]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			return Round{}, fmt.Errorf("%w: %w %s", ErrInvalidState, ErrDuplicateParticipant, id)
		}
		seen[id] = struct{}{}
	}

	order := slices.Clone(participantIDs)
	e.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	next := room.Clone()
	next.Locked = true
	next.CurrentIndex = 0
	next.Order = order
	next.CompletedUserIDs = []uuid.UUID{}
	next.Version++

	senryus := make([]model.Senryu, 0, len(order))
	for _, userID := range order {
		senryus = append(senryus, model.Senryu{
			ID:            e.newID(),
			RoomID:        room.ID,
			CurrentUserID: userID,
			OriginUserID:  userID,
		})
	}

	return Round{Room: next, Senryus: senryus}, nil
}

type Submission struct {
	Room      model.Room
	Character model.Character
	// Advanced is set when this submission filled the slot.
	Advanced bool
	// Completed is set when the advance reached the end of the poem.
	Completed bool
}

func (e *Engine) Submit(room model.Room, userID uuid.UUID, senryu model.Senryu, character string) (Submission, error) {
	if IsRoundComplete(room) {
		return Submission{}, ErrRoundComplete
	}
	if !room.Locked || len(room.Order) == 0 {
		return Submission{}, ErrInvalidState
	}
	if len(room.CompletedUserIDs) >= len(room.Order) {
		// A full completion set must have been reset by the advance.
		return Submission{}, fmt.Errorf("%w: completion set is full", ErrInvalidState)
	}
	if !room.InOrder(userID) {
		return Submission{}, ErrNotParticipant
	}
	if room.HasCompleted(userID) {
		return Submission{}, ErrAlreadySubmitted
	}
	if senryu.RoomID != room.ID || senryu.CurrentUserID != userID {
		return Submission{}, ErrNotSenryuHolder
	}

	next := room.Clone()
	sub := Submission{
		Character: model.Character{
			ID:        e.newID(),
			SenryuID:  senryu.ID,
			Index:     room.CurrentIndex,
			Character: character,
			UserID:    userID,
		},
	}

	next.CompletedUserIDs = append(next.CompletedUserIDs, userID)
	next.Version++
	if len(next.CompletedUserIDs) == len(next.Order) {
		next.CurrentIndex++
		next.CompletedUserIDs = []uuid.UUID{}
		sub.Advanced = true
		sub.Completed = IsRoundComplete(next)
	}
	sub.Room = next

	return sub, nil
}

// Rotate hands every senryu to the user following its current holder in order.
func Rotate(order []uuid.UUID, senryus []model.Senryu) ([]model.Senryu, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, ErrNoParticipants)
	}

	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	rotated := make([]model.Senryu, len(senryus))
	for i, s := range senryus {
		p, ok := pos[s.CurrentUserID]
		if !ok {
			return nil, fmt.Errorf("%w: holder %s of senryu %s is not in order", ErrInvalidState, s.CurrentUserID, s.ID)
		}
		s.CurrentUserID = order[(p+1)%len(order)]
		rotated[i] = s
	}
	return rotated, nil
}

func IsRoundComplete(room model.Room) bool {
	return room.CurrentIndex >= model.PoemLength
}

// HeldBy returns the senryu whose current holder is userID.
func HeldBy(senryus []model.Senryu, userID uuid.UUID) (model.Senryu, bool) {
	for _, s := range senryus {
		if s.CurrentUserID == userID {
			return s, true
		}
	}
	return model.Senryu{}, false
}
