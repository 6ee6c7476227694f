package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"

	DefaultFridgeName = "My Fridge"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt-хэш, наружу не отдаём
	Nickname     string    `json:"nickname"`
	Phone        string    `json:"phone"`
	Img          string    `json:"img,omitempty"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasRole reports whether the user holds the given role label.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Fridge struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"-"`
	Name        string       `json:"fridgeName"`
	Ingredients []Ingredient `json:"ingredients"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Ingredient struct {
	ID        string     `json:"id"` // ULID, sorts in insertion order
	FridgeID  uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	Unit      string     `json:"unit,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
