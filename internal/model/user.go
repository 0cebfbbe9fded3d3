package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Name      *string
	RoomID    *uuid.UUID
	CreatedAt time.Time
}

func (u User) InRoom(roomID uuid.UUID) bool {
	return u.RoomID != nil && *u.RoomID == roomID
}
