package token

import "github.com/google/uuid"

// NewValue returns a fresh unguessable token value: 122 random bits of a version 4 UUID in
// canonical form. Uniqueness is left to the randomness, no existence check is made.
func NewValue() string {
	return uuid.New().String()
}
