package domain

import "time"

// MaxUsernameLen bounds the users table primary key.
const MaxUsernameLen = 30

// User represents a gallery account.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
