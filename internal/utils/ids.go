package utils

import "github.com/google/uuid"

// NewID returns a new random record identifier.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id has the shape of an identifier produced by NewID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
