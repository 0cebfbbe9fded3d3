package infra_postgres_room

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Driver struct {
	db *sqlx.DB
}

func New(
	db *sqlx.DB,
) *Driver {
	return &Driver{db: db}
}

type roomDTO struct {
	ID               uuid.UUID      `db:"id"`
	Name             string         `db:"name"`
	OwnerID          uuid.UUID      `db:"owner_id"`
	Locked           bool           `db:"locked"`
	CurrentIndex     int            `db:"current_index"`
	TurnOrder        pq.StringArray `db:"turn_order"`
	CompletedUserIDs pq.StringArray `db:"completed_user_ids"`
	Version          int64          `db:"version"`
	CreatedAt        time.Time      `db:"created_at"`
}

// selectRooms reads uuid arrays as text so they scan into pq.StringArray.
const selectRooms = `
	SELECT id, name, owner_id, locked, current_index,
		turn_order::text[] AS turn_order,
		completed_user_ids::text[] AS completed_user_ids,
		version, created_at
	FROM rooms
`

func (r roomDTO) toModel() (model.Room, error) {
	order, err := ParseIDs(r.TurnOrder)
	if err != nil {
		return model.Room{}, err
	}
	completed, err := ParseIDs(r.CompletedUserIDs)
	if err != nil {
		return model.Room{}, err
	}

	return model.Room{
		ID:               r.ID,
		Name:             r.Name,
		OwnerID:          r.OwnerID,
		Locked:           r.Locked,
		CurrentIndex:     r.CurrentIndex,
		Order:            order,
		CompletedUserIDs: completed,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
	}, nil
}

func ParseIDs(raw pq.StringArray) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func FormatIDs(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (d *Driver) Create(ctx context.Context, room model.Room) error {
	query := `
		INSERT INTO rooms (id, name, owner_id, locked, current_index, turn_order, completed_user_ids, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::uuid[], $7::uuid[], $8, $9)
	`

	_, err := d.db.ExecContext(ctx, query,
		room.ID,
		room.Name,
		room.OwnerID,
		room.Locked,
		room.CurrentIndex,
		FormatIDs(room.Order),
		FormatIDs(room.CompletedUserIDs),
		room.Version,
		room.CreatedAt,
	)
	return err
}

func (d *Driver) ByID(ctx context.Context, id uuid.UUID) (model.Room, error) {
	var dto roomDTO

	err := d.db.GetContext(ctx, &dto, selectRooms+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Room{}, usecase_room.ErrResourceNotFound
		}
		return model.Room{}, err
	}

	return dto.toModel()
}

func (d *Driver) List(ctx context.Context) ([]model.Room, error) {
	var dtos []roomDTO

	if err := d.db.SelectContext(ctx, &dtos, selectRooms+` ORDER BY created_at DESC`); err != nil {
		return nil, err
	}

	rooms := make([]model.Room, 0, len(dtos))
	for _, dto := range dtos {
		room, err := dto.toModel()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Delete removes the room. Members are detached and senryus with their
// characters are removed by the foreign keys.
func (d *Driver) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
        DELETE FROM rooms
        WHERE id = $1
    `

	result, err := d.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return usecase_room.ErrResourceNotFound
	}

	return nil
}
