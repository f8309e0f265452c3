package models

import (
	"time"

	"github.com/yukikurage/taskhub-api/internal/utils"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string    `gorm:"primarykey;type:varchar(36)" bson:"_id" json:"id"`
	Name         string    `gorm:"type:varchar(50);not null" bson:"name" json:"name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" bson:"password" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'user'" bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	return nil
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CallerFrom returns the request identity for u.
func CallerFrom(u User) Caller {
	return Caller{ID: u.ID, Role: u.Role}
}
