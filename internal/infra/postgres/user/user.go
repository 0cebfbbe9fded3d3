package infra_postgres_user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	"github.com/jmoiron/sqlx"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type userDTO struct {
	ID        uuid.UUID      `db:"id"`
	Name      sql.NullString `db:"name"`
	RoomID    uuid.NullUUID  `db:"room_id"`
	CreatedAt time.Time      `db:"created_at"`
}

func (u userDTO) toModel() model.User {
	user := model.User{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
	}
	if u.Name.Valid {
		name := u.Name.String
		user.Name = &name
	}
	if u.RoomID.Valid {
		roomID := u.RoomID.UUID
		user.RoomID = &roomID
	}
	return user
}

func (d *Driver) Create(ctx context.Context, user model.User) error {
	dto := userDTO{
		ID:        user.ID,
		CreatedAt: user.CreatedAt,
	}
	if user.Name != nil {
		dto.Name = sql.NullString{String: *user.Name, Valid: true}
	}

	query := `
		INSERT INTO users (id, name, created_at)
		VALUES (:id, :name, :created_at)
	`

	_, err := d.db.NamedExecContext(ctx, query, dto)
	return err
}

func (d *Driver) ByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var dto userDTO

	query := `SELECT id, name, room_id, created_at FROM users WHERE id = $1`

	err := d.db.GetContext(ctx, &dto, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, usecase_room.ErrResourceNotFound
		}
		return model.User{}, err
	}

	return dto.toModel(), nil
}

func (d *Driver) SetName(ctx context.Context, id uuid.UUID, name string) error {
	query := `
        UPDATE users
        SET name = $1
        WHERE id = $2
    `

	result, err := d.db.ExecContext(ctx, query, name, id)
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

func (d *Driver) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]model.User, error) {
	var dtos []userDTO

	query := `
		SELECT id, name, room_id, created_at
		FROM users
		WHERE room_id = $1
		ORDER BY created_at, id
	`

	if err := d.db.SelectContext(ctx, &dtos, query, roomID); err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(dtos))
	for _, dto := range dtos {
		users = append(users, dto.toModel())
	}
	return users, nil
}

// Join moves the user into roomID. Both the target room and the room the user
// is leaving are share-locked, so a round cannot start in either of them
// until the move is committed.
func (d *Driver) Join(ctx context.Context, userID uuid.UUID, roomID uuid.UUID) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var locked bool
	err = tx.GetContext(ctx, &locked, `SELECT locked FROM rooms WHERE id = $1 FOR SHARE`, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return usecase_room.ErrResourceNotFound
		}
		return err
	}
	if locked {
		return usecase_room.ErrRoomLocked
	}

	_, locked, err = currentRoomLocked(ctx, tx, userID)
	if err != nil {
		return err
	}
	if locked {
		return usecase_room.ErrRoomLocked
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET room_id = $1 WHERE id = $2`, roomID, userID)
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

	return tx.Commit()
}

// Leave detaches the user from their room unless that room is locked.
// It reports whether the user actually left.
func (d *Driver) Leave(ctx context.Context, userID uuid.UUID) (bool, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	inRoom, locked, err := currentRoomLocked(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if !inRoom || locked {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET room_id = NULL WHERE id = $1`, userID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// currentRoomLocked share-locks the room the user is in, if any.
func currentRoomLocked(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (bool, bool, error) {
	var locked bool
	err := tx.GetContext(ctx, &locked, `
		SELECT r.locked
		FROM rooms r
		JOIN users u ON u.room_id = r.id
		WHERE u.id = $1
		FOR SHARE OF r
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, locked, nil
}
