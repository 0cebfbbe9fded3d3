package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PoemLength is the number of character slots in a round: 5+7+5.
const PoemLength = 17

var RowLengths = [3]int{5, 7, 5}

type Phase string

const (
	PhaseOpen       Phase = "OPEN"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseComplete   Phase = "COMPLETE"
)

type Room struct {
	ID               uuid.UUID
	Name             string
	OwnerID          uuid.UUID
	Locked           bool
	CurrentIndex     int
	Order            []uuid.UUID
	CompletedUserIDs []uuid.UUID
	// Bumped on every round-state write, used as the compare-and-swap token.
	Version   int64
	CreatedAt time.Time
}

func (r Room) Phase() Phase {
	switch {
	case !r.Locked:
		return PhaseOpen
	case r.CurrentIndex >= PoemLength:
		return PhaseComplete
	default:
		return PhaseInProgress
	}
}

func (r Room) HasCompleted(userID uuid.UUID) bool {
	return slices.Contains(r.CompletedUserIDs, userID)
}

func (r Room) InOrder(userID uuid.UUID) bool {
	return slices.Contains(r.Order, userID)
}

// Clone returns a copy that shares no slices with r.
func (r Room) Clone() Room {
	r.Order = slices.Clone(r.Order)
	r.CompletedUserIDs = slices.Clone(r.CompletedUserIDs)
	return r
}
