// Package authorization answers capability questions for a principal using a
// casbin role model.
package authorization

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCredentialFailures = "credential_failures"
	ObjectOperatorAlert      = "operator_alert"
	ObjectSlot               = "slot"
)

const (
	ActionReset       = "reset"
	ActionView        = "view"
	ActionAcknowledge = "acknowledge"
	ActionLockIn      = "lock_in"
)

var (
	ErrForbidden    = apperror.New(apperror.KindForbidden, "forbidden")
	ErrInvalidActor = apperror.New(apperror.KindInvalidInput, "invalid_actor")
)

// Authorizer checks whether a principal may perform action on object.
type Authorizer interface {
	Authorize(ctx context.Context, principal userdomain.Principal, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type Service struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer whose policies persist through the gorm adapter.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return buildEnforcer(adapter)
}

// NewMemoryEnforcer builds an enforcer holding only the seeded policies.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return buildEnforcer(nil)
}

func buildEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}

	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Authorizer {
	return &Service{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *Service) Authorize(ctx context.Context, principal userdomain.Principal, object, action string) error {
	if !principal.Role.Valid() {
		return ErrInvalidActor
	}

	subject := roleSubject(principal.Role)
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("user_id", principal.UserID.String()),
			zap.String("role", string(principal.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden.WithMessage("%s cannot %s %s", principal.Role, action, object)
	}
	return nil
}

func roleSubject(role userdomain.Role) string {
	return fmt.Sprintf("role:%s", role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:operator", ObjectCredentialFailures, ActionReset},
		{"role:operator", ObjectOperatorAlert, ActionView},
		{"role:operator", ObjectOperatorAlert, ActionAcknowledge},
		{"role:operator", ObjectSlot, ActionLockIn},

		{"role:system", ObjectSlot, ActionLockIn},
		{"role:system", ObjectOperatorAlert, ActionView},
	}

	for _, policy := range policies {
		params := make([]interface{}, 0, len(policy))
		for _, value := range policy {
			params = append(params, value)
		}
		has, err := enforcer.HasPolicy(params...)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(params...); err != nil {
			return err
		}
	}
	return nil
}
