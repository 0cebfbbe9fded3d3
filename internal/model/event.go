package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMembersChanged     EventType = "MEMBERS_CHANGED"
	EventRoundStarted       EventType = "ROUND_STARTED"
	EventCharacterSubmitted EventType = "CHARACTER_SUBMITTED"
	EventSlotAdvanced       EventType = "SLOT_ADVANCED"
	EventRoundCompleted     EventType = "ROUND_COMPLETED"
	EventRoomDeleted        EventType = "ROOM_DELETED"
	EventPresenceChanged    EventType = "PRESENCE_CHANGED"
)

// Versioned reports whether events of this type carry the room version their
// change produced. A state read at that version or later already reflects them.
func (t EventType) Versioned() bool {
	switch t {
	case EventRoundStarted, EventCharacterSubmitted, EventSlotAdvanced, EventRoundCompleted:
		return true
	}
	return false
}

// RoomEvent is what the room feed carries to subscribers.
type RoomEvent struct {
	Type         EventType   `json:"type"`
	RoomID       uuid.UUID   `json:"room_id"`
	Version      int64       `json:"version"`
	CurrentIndex int         `json:"current_index"`
	Locked       bool        `json:"locked"`
	Order        []uuid.UUID `json:"order,omitempty"`
	Completed    []uuid.UUID `json:"completed_user_ids,omitempty"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Timestamp    int64       `json:"timestamp"`
}

func NewRoomEvent(t EventType, room Room) RoomEvent {
	return RoomEvent{
		Type:         t,
		RoomID:       room.ID,
		Version:      room.Version,
		CurrentIndex: room.CurrentIndex,
		Locked:       room.Locked,
		Order:        room.Order,
		Completed:    room.CompletedUserIDs,
		Timestamp:    time.Now().Unix(),
	}
}

func (e RoomEvent) WithUser(userID uuid.UUID) RoomEvent {
	e.UserID = &userID
	return e
}
