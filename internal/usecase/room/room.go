package usecase_room

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	ErrInternal             = errors.New("internal error")
	ErrResourceNotFound     = errors.New("no such resource")
	ErrRoomLocked           = errors.New("room is locked")
	ErrNotOwner             = errors.New("user is not the room owner")
	ErrConfirmationRequired = errors.New("deleting a locked room requires confirmation")
	ErrInvalidName          = errors.New("invalid room name")
)

const maxNameLen = 64

//go:generate mockery --name=RoomRepository --output=./mocks/room/repository --filename=repository.go
type RoomRepository interface {
	Create(ctx context.Context, room model.Room) error
	ByID(ctx context.Context, id uuid.UUID) (model.Room, error)
	List(ctx context.Context) ([]model.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Join and Leave are conditional on the lock of the rooms involved, so a
// member cannot slip in or out while a round is being started.
//
//go:generate mockery --name=MemberRepository --output=./mocks/room/member --filename=member.go
type MemberRepository interface {
	ByID(ctx context.Context, id uuid.UUID) (model.User, error)
	Join(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) error
	Leave(ctx context.Context, userID uuid.UUID) (bool, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]model.User, error)
}

//go:generate mockery --name=Publisher --output=./mocks/room/publisher --filename=publisher.go
type Publisher interface {
	Publish(ctx context.Context, event model.RoomEvent) error
}

type Usecase struct {
	RoomRepository   RoomRepository
	MemberRepository MemberRepository
	Publisher        Publisher

	logger *logrus.Logger
}

type Option func(*Usecase)

func WithLogger(logger *logrus.Logger) Option {
	return func(u *Usecase) {
		u.logger = logger
	}
}

func New(
	roomRepository RoomRepository,
	memberRepository MemberRepository,
	publisher Publisher,
	opts ...Option,
) *Usecase {
	u := &Usecase{
		RoomRepository:   roomRepository,
		MemberRepository: memberRepository,
		Publisher:        publisher,
		logger:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Usecase) Create(ctx context.Context, name string, ownerID uuid.UUID) (model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLen {
		return model.Room{}, ErrInvalidName
	}

	if _, err := u.MemberRepository.ByID(ctx, ownerID); err != nil {
		return model.Room{}, u.wrap(err)
	}

	room := model.Room{
		ID:               uuid.New(),
		Name:             name,
		OwnerID:          ownerID,
		Order:            []uuid.UUID{},
		CompletedUserIDs: []uuid.UUID{},
		CreatedAt:        time.Now().UTC(),
	}
	if err := u.RoomRepository.Create(ctx, room); err != nil {
		return model.Room{}, errors.Join(ErrInternal, err)
	}

	u.logger.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"owner_id": ownerID,
	}).Info("room created")
	return room, nil
}

func (u *Usecase) Get(ctx context.Context, id uuid.UUID) (model.Room, error) {
	room, err := u.RoomRepository.ByID(ctx, id)
	if err != nil {
		return model.Room{}, u.wrap(err)
	}
	return room, nil
}

func (u *Usecase) List(ctx context.Context) ([]model.Room, error) {
	rooms, err := u.RoomRepository.List(ctx)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return rooms, nil
}

func (u *Usecase) Participants(ctx context.Context, roomID uuid.UUID) ([]model.User, error) {
	if _, err := u.RoomRepository.ByID(ctx, roomID); err != nil {
		return nil, u.wrap(err)
	}

	users, err := u.MemberRepository.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return users, nil
}

// Delete removes the room. Members are detached and the round's senryus and
// characters go with it. A locked room is only deleted when confirmed.
func (u *Usecase) Delete(ctx context.Context, roomID uuid.UUID, requesterID uuid.UUID, confirm bool) error {
	room, err := u.RoomRepository.ByID(ctx, roomID)
	if err != nil {
		return u.wrap(err)
	}
	if room.OwnerID != requesterID {
		return ErrNotOwner
	}
	if room.Locked && !confirm {
		return ErrConfirmationRequired
	}

	if err := u.RoomRepository.Delete(ctx, roomID); err != nil {
		return u.wrap(err)
	}

	u.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"locked":  room.Locked,
	}).Info("room deleted")
	u.publish(ctx, model.NewRoomEvent(model.EventRoomDeleted, room))
	return nil
}

func (u *Usecase) Join(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (model.User, error) {
	room, err := u.RoomRepository.ByID(ctx, roomID)
	if err != nil {
		return model.User{}, u.wrap(err)
	}
	if room.Locked {
		return model.User{}, ErrRoomLocked
	}

	user, err := u.MemberRepository.ByID(ctx, userID)
	if err != nil {
		return model.User{}, u.wrap(err)
	}
	if user.InRoom(roomID) {
		return user, nil
	}

	if err := u.MemberRepository.Join(ctx, userID, roomID); err != nil {
		return model.User{}, u.wrap(err)
	}
	previous := user.RoomID
	user.RoomID = &roomID

	u.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
	}).Info("user joined room")
	u.publish(ctx, model.NewRoomEvent(model.EventMembersChanged, room).WithUser(userID))
	if previous != nil {
		u.publish(ctx, model.RoomEvent{
			Type:      model.EventMembersChanged,
			RoomID:    *previous,
			UserID:    &userID,
			Timestamp: time.Now().Unix(),
		})
	}
	return user, nil
}

// Leave is silently ignored while the user's room is locked: leaving
// mid-round is not allowed.
func (u *Usecase) Leave(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := u.MemberRepository.ByID(ctx, userID)
	if err != nil {
		return model.User{}, u.wrap(err)
	}
	if user.RoomID == nil {
		return user, nil
	}
	roomID := *user.RoomID

	left, err := u.MemberRepository.Leave(ctx, userID)
	if err != nil {
		return model.User{}, u.wrap(err)
	}

	logCtx := u.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
	})
	if !left {
		logCtx.Info("leave ignored, room is locked")
		return user, nil
	}

	user.RoomID = nil
	logCtx.Info("user left room")
	u.publish(ctx, model.RoomEvent{
		Type:      model.EventMembersChanged,
		RoomID:    roomID,
		UserID:    &userID,
		Timestamp: time.Now().Unix(),
	})
	return user, nil
}

// LeaveRoom is Leave scoped to roomID: a user who is elsewhere is returned
// unchanged.
func (u *Usecase) LeaveRoom(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) (model.User, error) {
	user, err := u.MemberRepository.ByID(ctx, userID)
	if err != nil {
		return model.User{}, u.wrap(err)
	}
	if !user.InRoom(roomID) {
		return user, nil
	}
	return u.Leave(ctx, userID)
}

func (u *Usecase) publish(ctx context.Context, event model.RoomEvent) {
	if u.Publisher == nil {
		return
	}
	if err := u.Publisher.Publish(ctx, event); err != nil {
		u.logger.WithError(err).WithFields(logrus.Fields{
			"room_id": event.RoomID,
			"event":   event.Type,
		}).Warn("failed to publish room event")
	}
}

func (u *Usecase) wrap(err error) error {
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return ErrResourceNotFound
	case errors.Is(err, ErrRoomLocked):
		return ErrRoomLocked
	}
	return errors.Join(ErrInternal, err)
}
