// Package testutil opens throwaway sqlite databases with the engine schema and
// seeds the rows most service tests need.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/rotation/internal/catalog/repository"
	"github.com/smallbiznis/rotation/internal/migration"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns an isolated in-memory database. Row locks are stripped because
// sqlite has no FOR UPDATE; a single connection keeps transactions serialized.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	stripLocks := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	if err := db.Callback().Query().Before("gorm:query").Register("sqlite_strip_locks", stripLocks); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := db.Callback().Row().Before("gorm:row").Register("sqlite_strip_locks_row", stripLocks); err != nil {
		t.Fatalf("register row callback: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewNode returns a snowflake node for test ids.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// SeedUser inserts a user with one slot and the given debt.
func SeedUser(t testing.TB, db *gorm.DB, node *snowflake.Node, debtSats int64) *userdomain.User {
	t.Helper()
	return SeedUserWithRole(t, db, node, userdomain.RoleUser, debtSats)
}

func SeedUserWithRole(t testing.TB, db *gorm.DB, node *snowflake.Node, role userdomain.Role, debtSats int64) *userdomain.User {
	t.Helper()
	id := node.Generate()
	user, err := userdomain.NewUser(id, fmt.Sprintf("%s@example.test", id.String()), role, 1, debtSats, time.Now().UTC())
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedService upserts a supported catalog entry.
func SeedService(t testing.TB, db *gorm.DB, id string, monthlyCostCents int64) *catalogdomain.StreamingService {
	t.Helper()
	now := time.Now().UTC()
	svc := &catalogdomain.StreamingService{
		ID:               id,
		DisplayName:      strings.ToUpper(id[:1]) + id[1:],
		MonthlyCostCents: monthlyCostCents,
		Supported:        true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := catalogrepository.Provide().Upsert(context.Background(), db, svc); err != nil {
		t.Fatalf("seed service %s: %v", id, err)
	}
	return svc
}
