package auth

import "time"

// User represents a manager account. Every invoicer is owned by one manager
// and all API requests act on behalf of one.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// APIKey is one issued credential. Only the bcrypt hash is stored; the clear
// key is shown once at issue time. Prefix is the key's first characters kept
// in clear for lookup.
type APIKey struct {
	ID         int64
	UserID     int64
	Label      string
	Prefix     string
	Hash       string
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// PrefixLength is how many leading characters of a key are stored in clear.
const PrefixLength = 12
