package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateUserRequest struct {
	Email        string
	Role         Role
	SlotCapacity int
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
	Principal(ctx context.Context, id snowflake.ID) (Principal, error)
	MarkOnboarded(ctx context.Context, id snowflake.ID) error
}
