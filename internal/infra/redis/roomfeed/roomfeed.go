package infra_redis_roomfeed

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	"github.com/sirupsen/logrus"
)

// Driver fans room events out over redis pub/sub, one channel per room.
type Driver struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

type Option func(*Driver)

func WithLogger(logger *logrus.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

func New(client *redis.Client, prefix string, opts ...Option) *Driver {
	d := &Driver{
		client: client,
		prefix: prefix,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Publish(ctx context.Context, event model.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return d.client.WithContext(ctx).Publish(d.channel(event.RoomID), payload).Err()
}

// Subscribe streams the room's events until ctx is done, then closes the
// channel. A closed stream cannot be resumed; subscribe again instead.
func (d *Driver) Subscribe(ctx context.Context, roomID uuid.UUID) (<-chan model.RoomEvent, error) {
	ps := d.client.Subscribe(d.channel(roomID))
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan model.RoomEvent)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event model.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					d.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed room event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (d *Driver) channel(roomID uuid.UUID) string {
	if d.prefix != "" {
		return d.prefix + ":room:" + roomID.String()
	}
	return "room:" + roomID.String()
}
