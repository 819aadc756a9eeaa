package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

// UserService maintains the local projection of identity-provider accounts.
type UserService struct {
	store ports.Store
	obs   Observers
}

func NewUserService(store ports.Store, obs Observers) *UserService {
	return &UserService{store: store, obs: obs}
}

// Apply reports whether the event type was one it acts on. The role of an
// existing user is never changed by the identity provider.
func (s *UserService) Apply(ctx context.Context, ev *entity.IdentityEvent) (bool, error) {
	switch ev.Type {
	case entity.IdentityUserCreated, entity.IdentityUserUpdated:
		if ev.User.ID == "" {
			return false, apperr.New(apperr.Validation, "user id missing")
		}
		if strings.TrimSpace(ev.User.Email) == "" {
			return false, apperr.New(apperr.Validation, "primary email missing")
		}
		u := ev.User
		u.Role = entity.RoleUser
		if err := s.store.UpsertUser(ctx, &u); err != nil {
			s.obs.Metrics.Webhook("identity", "error")
			return false, apperr.Wrap(err, "upsert user")
		}
		slog.InfoContext(ctx, "user synced", "user_id", u.ID, "type", string(ev.Type))
	case entity.IdentityUserDeleted:
		if ev.User.ID == "" {
			return false, apperr.New(apperr.Validation, "user id missing")
		}
		if err := s.store.DeleteUser(ctx, ev.User.ID); err != nil {
			s.obs.Metrics.Webhook("identity", "error")
			return false, apperr.Wrap(err, "delete user")
		}
		slog.InfoContext(ctx, "user deleted", "user_id", ev.User.ID)
	default:
		s.obs.Metrics.Webhook("identity", "ignored")
		return false, nil
	}
	s.obs.Metrics.Webhook("identity", "applied")
	return true, nil
}

// RequireAdmin checks the stored role; token claims are not trusted for it.
func (s *UserService) RequireAdmin(ctx context.Context, userID string) (*entity.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if isNotFound(err) {
		return nil, apperr.New(apperr.Forbidden, "Forbidden: Admin access required")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load user")
	}
	if u.Role != entity.RoleAdmin {
		return nil, apperr.New(apperr.Forbidden, "Forbidden: Admin access required")
	}
	return u, nil
}
