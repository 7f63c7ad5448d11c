package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is an operator or admin account. New registrations start with
// IsApproved=false and stay locked out of the application until an admin
// approves them; rejection deletes the row.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Email        string
	Name         string
	Affiliation  *string
	Role         UserRole
	IsApproved   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
