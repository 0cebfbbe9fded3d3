package usecase_round

import (
	"context"
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	service_rotation "github.com/humanbelnik/senryu/internal/service/rotation"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	"github.com/sirupsen/logrus"
)

var (
	ErrInternal         = usecase_room.ErrInternal
	ErrResourceNotFound = usecase_room.ErrResourceNotFound
	ErrNotOwner         = usecase_room.ErrNotOwner

	ErrInvalidState     = service_rotation.ErrInvalidState
	ErrNoParticipants   = service_rotation.ErrNoParticipants
	ErrAlreadySubmitted = service_rotation.ErrAlreadySubmitted
	ErrRoundComplete    = service_rotation.ErrRoundComplete
	ErrNotParticipant   = service_rotation.ErrNotParticipant
	ErrNotSenryuHolder  = service_rotation.ErrNotSenryuHolder

	// ErrRaceLost is returned by repositories when the room changed between
	// read and conditional write.
	ErrRaceLost         = errors.New("room changed concurrently")
	ErrInvalidCharacter = errors.New("character must be a single glyph")
)

//go:generate mockery --name=RoomRepository --output=./mocks/round/room --filename=room.go
type RoomRepository interface {
	ByID(ctx context.Context, id uuid.UUID) (model.Room, error)
}

//go:generate mockery --name=MemberRepository --output=./mocks/round/member --filename=member.go
type MemberRepository interface {
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]model.User, error)
}

// RoundRepository writes are conditional on the room version read before the
// decision was made; a mismatch must be reported as ErrRaceLost and leave
// nothing written.
//
//go:generate mockery --name=RoundRepository --output=./mocks/round/repository --filename=repository.go
type RoundRepository interface {
	StartRound(ctx context.Context, expectedVersion int64, room model.Room, senryus []model.Senryu) error
	ApplySubmission(ctx context.Context, expectedVersion int64, room model.Room, character model.Character, rotated []model.Senryu) error
	SenryusByRoom(ctx context.Context, roomID uuid.UUID) ([]model.Senryu, error)
	CharactersByRoom(ctx context.Context, roomID uuid.UUID) ([]model.Character, error)
}

//go:generate mockery --name=Publisher --output=./mocks/round/publisher --filename=publisher.go
type Publisher interface {
	Publish(ctx context.Context, event model.RoomEvent) error
}

type Usecase struct {
	engine *service_rotation.Engine

	roomRepository   RoomRepository
	memberRepository MemberRepository
	roundRepository  RoundRepository
	publisher        Publisher

	logger *logrus.Logger
}

type Option func(*Usecase)

func WithLogger(logger *logrus.Logger) Option {
	return func(u *Usecase) {
		u.logger = logger
	}
}

func New(
	engine *service_rotation.Engine,
	roomRepository RoomRepository,
	memberRepository MemberRepository,
	roundRepository RoundRepository,
	publisher Publisher,
	opts ...Option,
) *Usecase {
	if engine == nil {
		engine = service_rotation.New()
	}

	u := &Usecase{
		engine:           engine,
		roomRepository:   roomRepository,
		memberRepository: memberRepository,
		roundRepository:  roundRepository,
		publisher:        publisher,
		logger:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start locks the room and fixes a shuffled turn order over its current
// members. Only the owner may start.
func (u *Usecase) Start(ctx context.Context, roomID uuid.UUID, requesterID uuid.UUID) (service_rotation.Round, error) {
	logCtx := u.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": requesterID,
	})

	round, err := u.start(ctx, roomID, requesterID)
	if errors.Is(err, ErrRaceLost) {
		logCtx.Info("start round lost a race, retrying")
		round, err = u.start(ctx, roomID, requesterID)
	}
	if err != nil {
		logCtx.WithError(err).Warn("failed to start round")
		return service_rotation.Round{}, u.wrap(err)
	}

	logCtx.WithField("participants", len(round.Room.Order)).Info("round started")
	u.publish(ctx, model.NewRoomEvent(model.EventRoundStarted, round.Room))
	return round, nil
}

func (u *Usecase) start(ctx context.Context, roomID uuid.UUID, requesterID uuid.UUID) (service_rotation.Round, error) {
	room, err := u.roomRepository.ByID(ctx, roomID)
	if err != nil {
		return service_rotation.Round{}, err
	}
	if room.OwnerID != requesterID {
		return service_rotation.Round{}, ErrNotOwner
	}

	members, err := u.memberRepository.ListByRoom(ctx, roomID)
	if err != nil {
		return service_rotation.Round{}, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}

	round, err := u.engine.StartRound(room, ids)
	if err != nil {
		return service_rotation.Round{}, err
	}

	if err := u.roundRepository.StartRound(ctx, room.Version, round.Room, round.Senryus); err != nil {
		return service_rotation.Round{}, err
	}
	return round, nil
}

// Submit records the user's character for the current slot of the senryu they
// hold. A lost race is retried once on fresh state.
func (u *Usecase) Submit(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, character string) (service_rotation.Submission, error) {
	if !ValidCharacter(character) {
		return service_rotation.Submission{}, ErrInvalidCharacter
	}

	logCtx := u.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
	})

	sub, slot, err := u.submit(ctx, roomID, userID, character, -1)
	if errors.Is(err, ErrRaceLost) {
		logCtx.Info("submission lost a race, retrying")
		sub, _, err = u.submit(ctx, roomID, userID, character, slot)
	}
	if err != nil {
		logCtx.WithError(err).Warn("submission rejected")
		return service_rotation.Submission{}, u.wrap(err)
	}

	logCtx.WithFields(logrus.Fields{
		"index":    sub.Character.Index,
		"advanced": sub.Advanced,
	}).Info("character submitted")

	u.publish(ctx, model.NewRoomEvent(model.EventCharacterSubmitted, sub.Room).WithUser(userID))
	if sub.Advanced {
		u.publish(ctx, model.NewRoomEvent(model.EventSlotAdvanced, sub.Room))
	}
	if sub.Completed {
		logCtx.Info("round completed")
		u.publish(ctx, model.NewRoomEvent(model.EventRoundCompleted, sub.Room))
	}
	return sub, nil
}

// submit returns the slot it aimed at. When slot is not negative the room must
// still be at that slot, so a retry never lands a character one slot later.
// A slot only advances once every participant has written it, so a move past
// the pinned slot means this user's other submission won.
func (u *Usecase) submit(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, character string, slot int) (service_rotation.Submission, int, error) {
	room, err := u.roomRepository.ByID(ctx, roomID)
	if err != nil {
		return service_rotation.Submission{}, slot, err
	}
	if slot >= 0 && room.CurrentIndex != slot && !service_rotation.IsRoundComplete(room) {
		return service_rotation.Submission{}, slot, ErrAlreadySubmitted
	}
	slot = room.CurrentIndex

	senryus, err := u.roundRepository.SenryusByRoom(ctx, roomID)
	if err != nil {
		return service_rotation.Submission{}, slot, err
	}
	// A user holding nothing is left for the engine to classify.
	senryu, _ := service_rotation.HeldBy(senryus, userID)

	sub, err := u.engine.Submit(room, userID, senryu, character)
	if err != nil {
		return service_rotation.Submission{}, slot, err
	}

	var rotated []model.Senryu
	if sub.Advanced {
		rotated, err = service_rotation.Rotate(sub.Room.Order, senryus)
		if err != nil {
			return service_rotation.Submission{}, slot, err
		}
	}

	if err := u.roundRepository.ApplySubmission(ctx, room.Version, sub.Room, sub.Character, rotated); err != nil {
		return service_rotation.Submission{}, slot, err
	}
	return sub, slot, nil
}

type Poem struct {
	Room  model.Room
	Phase model.Phase
	Lines []model.PoemLine
}

func (u *Usecase) Poem(ctx context.Context, roomID uuid.UUID) (Poem, error) {
	room, err := u.roomRepository.ByID(ctx, roomID)
	if err != nil {
		return Poem{}, u.wrap(err)
	}

	senryus, err := u.roundRepository.SenryusByRoom(ctx, roomID)
	if err != nil {
		return Poem{}, u.wrap(err)
	}
	characters, err := u.roundRepository.CharactersByRoom(ctx, roomID)
	if err != nil {
		return Poem{}, u.wrap(err)
	}

	return Poem{
		Room:  room,
		Phase: room.Phase(),
		Lines: model.BuildPoem(senryus, characters),
	}, nil
}

type State struct {
	Room    model.Room
	Phase   model.Phase
	Holders map[uuid.UUID]uuid.UUID // user id -> senryu id
}

func (u *Usecase) State(ctx context.Context, roomID uuid.UUID) (State, error) {
	room, err := u.roomRepository.ByID(ctx, roomID)
	if err != nil {
		return State{}, u.wrap(err)
	}

	senryus, err := u.roundRepository.SenryusByRoom(ctx, roomID)
	if err != nil {
		return State{}, u.wrap(err)
	}

	holders := make(map[uuid.UUID]uuid.UUID, len(senryus))
	for _, s := range senryus {
		holders[s.CurrentUserID] = s.ID
	}
	return State{
		Room:    room,
		Phase:   room.Phase(),
		Holders: holders,
	}, nil
}

// ValidCharacter accepts exactly one printable, non-space rune.
func ValidCharacter(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsPrint(r) && !unicode.IsSpace(r)
}

func (u *Usecase) publish(ctx context.Context, event model.RoomEvent) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, event); err != nil {
		u.logger.WithError(err).WithFields(logrus.Fields{
			"room_id": event.RoomID,
			"event":   event.Type,
		}).Warn("failed to publish room event")
	}
}

func (u *Usecase) wrap(err error) error {
	for _, known := range []error{
		ErrResourceNotFound,
		ErrNotOwner,
		ErrRaceLost,
		ErrRoundComplete,
		ErrAlreadySubmitted,
		ErrNotParticipant,
		ErrNotSenryuHolder,
		ErrInvalidState,
		ErrNoParticipants,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return errors.Join(ErrInternal, err)
}
