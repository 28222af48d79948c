package user

import (
	"errors"
	"time"
)

const (
	RoleAdvocate = "advocate"
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrMobileAlreadyUsed = errors.New("mobile already registered")
)

type User struct {
	ID        string     `json:"id" bson:"_id"`
	Name      string     `json:"name" bson:"name"`
	Mobile    string     `json:"mobile" bson:"mobile"`
	PINHash   string     `json:"-" bson:"pin"` // never expose hash in JSON
	Role      string     `json:"role" bson:"role"`
	IsActive  bool       `json:"isActive" bson:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Projection is the minimal view returned by the login endpoints.
type Projection struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Role   string `json:"role"`
}

func (u User) Project() Projection {
	return Projection{ID: u.ID, Name: u.Name, Mobile: u.Mobile, Role: u.Role}
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdvocate, RoleAdmin, RoleStaff:
		return true
	default:
		return false
	}
}

// UpdateProfileRequest lists the only profile fields a user may change.
type UpdateProfileRequest struct {
	Name *string `json:"name" binding:"omitempty,min=2,max=80"`
}

type ChangePINRequest struct {
	CurrentPIN string `json:"currentPIN" binding:"required,len=4,digits"`
	NewPIN     string `json:"newPIN" binding:"required,len=4,digits"`
}

type CreateUserRequest struct {
	Name   string `json:"name" binding:"required,min=2,max=80"`
	Mobile string `json:"mobile" binding:"required,len=10,digits"`
	PIN    string `json:"pin" binding:"required,len=4,digits"`
	Role   string `json:"role" binding:"omitempty,oneof=advocate admin staff"`
}

type UpdateStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}
