// Package domain contains the user record and the principal used for
// capability checks.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOperator, RoleSystem:
		return true
	default:
		return false
	}
}

type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:text;not null;uniqueIndex"`
	DebtSats     int64        `gorm:"not null;default:0"`
	SlotCapacity int          `gorm:"not null;default:1"`
	Role         Role         `gorm:"type:text;not null;default:'user'"`
	OnboardedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// NewUser validates and builds a user record. Debt can never start negative.
func NewUser(id snowflake.ID, email string, role Role, slotCapacity int, debtSats int64, now time.Time) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if slotCapacity < 1 {
		return nil, ErrInvalidSlotCapacity
	}
	if debtSats < 0 {
		return nil, ErrNegativeDebt
	}
	return &User{
		ID:           id,
		Email:        email,
		DebtSats:     debtSats,
		SlotCapacity: slotCapacity,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Principal is the acting identity for capability checks.
type Principal struct {
	UserID snowflake.ID
	Role   Role
}

func SystemPrincipal() Principal {
	return Principal{Role: RoleSystem}
}
