package domain

import "time"

// User is the domain model for registered accounts. PasswordHash is internal
// only and must never be serialized to callers.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
