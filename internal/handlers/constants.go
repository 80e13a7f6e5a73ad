package handlers

const (
	ErrUnauthorized        = "Unauthorized"
	ErrInternalServerError = "Internal server error"
	ErrInvalidLimit        = "Invalid limit"
)
