package usecase_user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	"github.com/sirupsen/logrus"
)

var (
	ErrInternal         = usecase_room.ErrInternal
	ErrResourceNotFound = usecase_room.ErrResourceNotFound
	ErrUnauthorized     = errors.New("unknown or expired token")
	ErrInvalidName      = errors.New("invalid user name")
)

const (
	maxNameLen      = 32
	defaultTokenTTL = 24 * time.Hour
)

//go:generate mockery --name=UserRepository --output=./mocks/user/repository --filename=repository.go
type UserRepository interface {
	Create(ctx context.Context, user model.User) error
	ByID(ctx context.Context, id uuid.UUID) (model.User, error)
	SetName(ctx context.Context, id uuid.UUID, name string) error
}

//go:generate mockery --name=SessionCache --output=./mocks/user/session --filename=session.go
type SessionCache interface {
	Set(key string, value string, ttl time.Duration) error
	Get(key string) (string, error)
	Refresh(key string, ttl time.Duration) error
}

//go:generate mockery --name=Publisher --output=./mocks/user/publisher --filename=publisher.go
type Publisher interface {
	Publish(ctx context.Context, event model.RoomEvent) error
}

type Usecase struct {
	userRepository UserRepository
	sessionCache   SessionCache
	publisher      Publisher
	ttl            time.Duration

	logger *logrus.Logger
}

type Option func(*Usecase)

func WithLogger(logger *logrus.Logger) Option {
	return func(u *Usecase) {
		u.logger = logger
	}
}

// WithPublisher lets a rename reach the renamed user's room.
func WithPublisher(publisher Publisher) Option {
	return func(u *Usecase) {
		u.publisher = publisher
	}
}

func New(
	userRepository UserRepository,
	sessionCache SessionCache,
	ttl *time.Duration,
	opts ...Option,
) *Usecase {
	if ttl == nil {
		ttl = func() *time.Duration {
			t := defaultTokenTTL
			return &t
		}()
	}

	u := &Usecase{
		userRepository: userRepository,
		sessionCache:   sessionCache,
		ttl:            *ttl,
		logger:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Create registers a user for a fresh app session and issues the token the
// client presents as X-user-token afterwards.
func (u *Usecase) Create(ctx context.Context, name *string) (model.User, string, error) {
	if name != nil {
		trimmed, err := validName(*name)
		if err != nil {
			return model.User{}, "", err
		}
		name = &trimmed
	}

	user := model.User{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.userRepository.Create(ctx, user); err != nil {
		return model.User{}, "", errors.Join(ErrInternal, err)
	}

	token := u.genToken()
	if err := u.sessionCache.Set(token, user.ID.String(), u.ttl); err != nil {
		return model.User{}, "", errors.Join(ErrInternal, err)
	}

	return user, token, nil
}

func (u *Usecase) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := u.userRepository.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return model.User{}, ErrResourceNotFound
		}
		return model.User{}, errors.Join(ErrInternal, err)
	}
	return user, nil
}

func (u *Usecase) Rename(ctx context.Context, id uuid.UUID, name string) (model.User, error) {
	name, err := validName(name)
	if err != nil {
		return model.User{}, err
	}

	if err := u.userRepository.SetName(ctx, id, name); err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return model.User{}, ErrResourceNotFound
		}
		return model.User{}, errors.Join(ErrInternal, err)
	}

	user, err := u.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if user.RoomID != nil {
		u.publish(ctx, model.RoomEvent{
			Type:      model.EventMembersChanged,
			RoomID:    *user.RoomID,
			UserID:    &user.ID,
			Timestamp: time.Now().Unix(),
		})
	}
	return user, nil
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

// Authenticate resolves a token to its user and extends the session.
func (u *Usecase) Authenticate(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrUnauthorized
	}

	v, err := u.sessionCache.Get(token)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInternal, err)
	}
	if v == "" {
		return uuid.Nil, ErrUnauthorized
	}

	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInternal, err)
	}

	if err := u.sessionCache.Refresh(token, u.ttl); err != nil {
		return uuid.Nil, errors.Join(ErrInternal, err)
	}
	return id, nil
}

func (u *Usecase) genToken() string {
	return uuid.New().String()
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}
