package model

import "github.com/google/uuid"

type Senryu struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	CurrentUserID uuid.UUID
	// Participant the line was created for at round start.
	OriginUserID uuid.UUID
}

type Character struct {
	ID        uuid.UUID
	SenryuID  uuid.UUID
	Index     int
	Character string
	UserID    uuid.UUID
}
