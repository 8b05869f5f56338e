// Package domain describes the balance a user must hold before the next gift
// card purchase can be made.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"gorm.io/gorm"
)

// Requirement is the cost of the next lock-in. NextService is nil when nothing
// is queued, in which case every amount is zero.
type Requirement struct {
	NextService     *catalogdomain.StreamingService
	PlatformFeeSats int64
	GiftCardSats    int64
	TotalSats       int64
}

type Service interface {
	RequiredBalance(ctx context.Context, userID snowflake.ID) (*Requirement, error)
	RequiredBalanceTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*Requirement, error)
	// Shortfall is max(0, required - balance).
	Shortfall(ctx context.Context, userID snowflake.ID) (int64, error)
	ShortfallTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error)
	// Quote prices a lock-in of a specific service, regardless of queue order.
	Quote(ctx context.Context, tx *gorm.DB, serviceID string) (*Requirement, error)
}
