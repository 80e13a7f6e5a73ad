package models

import "time"

// User holds login credentials for an account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthClaims describes an authenticated caller
type AuthClaims struct {
	AccountID string
	Username  string
	ExpiresAt time.Time
}

// IsExpired checks if the claims have expired
func (c *AuthClaims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
