package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Store(ctx context.Context, userID snowflake.ID, serviceID string, creds Credentials) error
	Reveal(ctx context.Context, userID snowflake.ID, serviceID string) (*Credentials, error)
	Delete(ctx context.Context, userID snowflake.ID, serviceID string) error
}
