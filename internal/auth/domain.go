package auth

import "time"

// Credential is the single shared store login. The row with id 1 is the only
// one the service ever reads or writes.
type Credential struct {
	ID           int64
	Username     string
	PasswordHash string
	UpdatedAt    time.Time
}

// DeviceSession records an issued bearer token for auditing. The token value
// itself lives in Redis with a TTL; this row only tracks provenance.
type DeviceSession struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
