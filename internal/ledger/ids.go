package ledger

import "github.com/google/uuid"

// NewID returns a random UUID string for new records
func NewID() string {
	return uuid.NewString()
}
