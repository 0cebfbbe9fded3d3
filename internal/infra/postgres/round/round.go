package infra_postgres_round

import (
	"context"
	"errors"

	"github.com/google/uuid"
	infra_postgres_room "github.com/humanbelnik/senryu/internal/infra/postgres/room"
	"github.com/humanbelnik/senryu/internal/model"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type senryuDTO struct {
	ID            uuid.UUID `db:"id"`
	RoomID        uuid.UUID `db:"room_id"`
	Position      int       `db:"position"`
	CurrentUserID uuid.UUID `db:"current_user_id"`
	OriginUserID  uuid.UUID `db:"origin_user_id"`
}

type characterDTO struct {
	ID        uuid.UUID `db:"id"`
	SenryuID  uuid.UUID `db:"senryu_id"`
	Index     int       `db:"idx"`
	Character string    `db:"character"`
	UserID    uuid.UUID `db:"user_id"`
}

// StartRound locks the room and creates its senryus in one transaction.
// The write only applies if the room is still unlocked at expectedVersion and
// its members are exactly the turn order.
func (d *Driver) StartRound(ctx context.Context, expectedVersion int64, room model.Room, senryus []model.Senryu) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE rooms
		SET locked = TRUE,
			current_index = $3,
			turn_order = $4::uuid[],
			completed_user_ids = $5::uuid[],
			version = $6
		WHERE id = $1 AND version = $2 AND NOT locked
	`
	result, err := tx.ExecContext(ctx, query,
		room.ID,
		expectedVersion,
		room.CurrentIndex,
		infra_postgres_room.FormatIDs(room.Order),
		infra_postgres_room.FormatIDs(room.CompletedUserIDs),
		room.Version,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	var members []uuid.UUID
	if err := tx.SelectContext(ctx, &members, `SELECT id FROM users WHERE room_id = $1`, room.ID); err != nil {
		return err
	}
	if !sameMembers(members, room.Order) {
		return usecase_round.ErrRaceLost
	}

	dtos := make([]senryuDTO, 0, len(senryus))
	for i, s := range senryus {
		dtos = append(dtos, senryuDTO{
			ID:            s.ID,
			RoomID:        s.RoomID,
			Position:      i,
			CurrentUserID: s.CurrentUserID,
			OriginUserID:  s.OriginUserID,
		})
	}
	if len(dtos) > 0 {
		insert := `
			INSERT INTO senryus (id, room_id, position, current_user_id, origin_user_id)
			VALUES (:id, :room_id, :position, :current_user_id, :origin_user_id)
		`
		if _, err := tx.NamedExecContext(ctx, insert, dtos); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ApplySubmission writes the room, the new character and, on advance, the
// rotated holders in one transaction guarded by the room version.
func (d *Driver) ApplySubmission(ctx context.Context, expectedVersion int64, room model.Room, character model.Character, rotated []model.Senryu) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE rooms
		SET current_index = $3,
			completed_user_ids = $4::uuid[],
			version = $5
		WHERE id = $1 AND version = $2
	`
	result, err := tx.ExecContext(ctx, query,
		room.ID,
		expectedVersion,
		room.CurrentIndex,
		infra_postgres_room.FormatIDs(room.CompletedUserIDs),
		room.Version,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	insert := `
		INSERT INTO characters (id, senryu_id, idx, character, user_id)
		VALUES (:id, :senryu_id, :idx, :character, :user_id)
	`
	_, err = tx.NamedExecContext(ctx, insert, characterDTO{
		ID:        character.ID,
		SenryuID:  character.SenryuID,
		Index:     character.Index,
		Character: character.Character,
		UserID:    character.UserID,
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return usecase_round.ErrRaceLost
		}
		return err
	}

	if len(rotated) > 0 {
		ids := make([]uuid.UUID, 0, len(rotated))
		holders := make([]uuid.UUID, 0, len(rotated))
		for _, s := range rotated {
			ids = append(ids, s.ID)
			holders = append(holders, s.CurrentUserID)
		}

		rotate := `
			UPDATE senryus AS s
			SET current_user_id = v.user_id
			FROM unnest($2::uuid[], $3::uuid[]) AS v(id, user_id)
			WHERE s.id = v.id AND s.room_id = $1
		`
		_, err := tx.ExecContext(ctx, rotate,
			room.ID,
			infra_postgres_room.FormatIDs(ids),
			infra_postgres_room.FormatIDs(holders),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *Driver) SenryusByRoom(ctx context.Context, roomID uuid.UUID) ([]model.Senryu, error) {
	var dtos []senryuDTO

	query := `
		SELECT id, room_id, position, current_user_id, origin_user_id
		FROM senryus
		WHERE room_id = $1
		ORDER BY position
	`
	if err := d.db.SelectContext(ctx, &dtos, query, roomID); err != nil {
		return nil, err
	}

	senryus := make([]model.Senryu, 0, len(dtos))
	for _, dto := range dtos {
		senryus = append(senryus, model.Senryu{
			ID:            dto.ID,
			RoomID:        dto.RoomID,
			CurrentUserID: dto.CurrentUserID,
			OriginUserID:  dto.OriginUserID,
		})
	}
	return senryus, nil
}

func (d *Driver) CharactersByRoom(ctx context.Context, roomID uuid.UUID) ([]model.Character, error) {
	var dtos []characterDTO

	query := `
		SELECT c.id, c.senryu_id, c.idx, c.character, c.user_id
		FROM characters c
		JOIN senryus s ON s.id = c.senryu_id
		WHERE s.room_id = $1
		ORDER BY s.position, c.idx
	`
	if err := d.db.SelectContext(ctx, &dtos, query, roomID); err != nil {
		return nil, err
	}

	characters := make([]model.Character, 0, len(dtos))
	for _, dto := range dtos {
		characters = append(characters, model.Character{
			ID:        dto.ID,
			SenryuID:  dto.SenryuID,
			Index:     dto.Index,
			Character: dto.Character,
			UserID:    dto.UserID,
		})
	}
	return characters, nil
}

func expectOneRow(result interface{ RowsAffected() (int64, error) }) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return usecase_round.ErrRaceLost
	}
	return nil
}

func sameMembers(members []uuid.UUID, order []uuid.UUID) bool {
	if len(members) != len(order) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(order))
	for _, id := range order {
		set[id] = struct{}{}
	}
	for _, id := range members {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
