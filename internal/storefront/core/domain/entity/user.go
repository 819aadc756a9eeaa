package entity

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the local projection of an identity-provider account.
type User struct {
	ID         string
	Email      string
	FullName   string
	Role       Role
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type IdentityEventType string

const (
	IdentityUserCreated IdentityEventType = "user.created"
	IdentityUserUpdated IdentityEventType = "user.updated"
	IdentityUserDeleted IdentityEventType = "user.deleted"
)

// IdentityEvent is a verified user lifecycle event from the identity provider.
type IdentityEvent struct {
	Type IdentityEventType
	User User
}
