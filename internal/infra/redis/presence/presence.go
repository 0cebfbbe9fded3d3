package infra_redis_presence

import (
	"context"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

// shiftScript applies a delta to one user's connection count. The field is
// removed only at exactly zero: an early Remove leaves -1 behind for the late
// Add to cancel out.
var shiftScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if n == 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`)

// Driver counts live connections per user in a room hash, so a user with two
// open sockets stays online until both are closed. Add and Remove commute.
type Driver struct {
	client *redis.Client
	key    string
}

func New(
	client *redis.Client,
	key string,
) *Driver {
	return &Driver{
		client: client,
		key:    key,
	}
}

func (d *Driver) Add(ctx context.Context, roomID uuid.UUID, userID uuid.UUID) error {
	return d.shift(ctx, roomID, userID, 1)
}

func (d *Driver) Remove(ctx context.Context, roomID uuid.UUID, userID uuid.UUID) error {
	return d.shift(ctx, roomID, userID, -1)
}

func (d *Driver) shift(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, delta int) error {
	return shiftScript.Run(d.client.WithContext(ctx), []string{d.roomKey(roomID)}, userID.String(), delta).Err()
}

func (d *Driver) Online(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	entries, err := d.client.WithContext(ctx).HGetAll(d.roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for k, v := range entries {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			continue
		}
		id, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Driver) roomKey(roomID uuid.UUID) string {
	if d.key != "" {
		return d.key + ":" + roomID.String()
	}
	return roomID.String()
}
