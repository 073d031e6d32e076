package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrItemNotActive = errors.New("item is not live")
	ErrBidTooLow     = errors.New("bid below minimum acceptable amount")
	ErrInvalidAmount = errors.New("bid amount has too many decimal places")
)

// PersistenceError reports a store failure. A bid that fails this way was not accepted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
