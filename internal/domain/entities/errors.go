package entities

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a record carries an EntityKind outside the
// fixed enumeration.
var ErrUnknownKind = errors.New("unknown entity kind")

// ErrSessionHeld is returned when another process already holds the
// single-writer session for a project ledger.
var ErrSessionHeld = errors.New("ledger session already held")

// OrderingError is returned when a commit would move history backwards:
// committing a chapter at or below the highest committed index, or a
// story-time record earlier than the current day.
type OrderingError struct {
	Kind         EntityKind
	EntityKey    string
	ChapterIndex int
	HighestIndex int
}

func (e *OrderingError) Error() string {
	if e.Kind == KindStoryTime {
		return fmt.Sprintf("ordering: chapter %d would move story time backwards (current day %d)",
			e.ChapterIndex, e.HighestIndex)
	}
	return fmt.Sprintf("ordering: chapter %d is not after highest committed chapter %d",
		e.ChapterIndex, e.HighestIndex)
}
