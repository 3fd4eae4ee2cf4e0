package jsonable

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 identifier for a new document record.
// UUIDv7 ids sort by creation time, so record keys list in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// IsValidID checks if a string is a valid record id
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
