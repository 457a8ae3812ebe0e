package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/auth"
	"clinic-management-api/internal/cache"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

type RoleSource interface {
	RoleByName(ctx context.Context, name string) (*model.Role, error)
}

// Resolver turns token claims into a Session, caching role lookups.
type Resolver struct {
	roles RoleSource
	cache cache.Cache
	ttl   time.Duration
}

func NewResolver(roles RoleSource, c cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{roles: roles, cache: c, ttl: ttl}
}

// Role returns the named role or store.ErrNotFound.
func (r *Resolver) Role(ctx context.Context, name string) (*model.Role, error) {
	key := cache.RoleKey(name)
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, key); err == nil {
			var role model.Role
			if json.Unmarshal(raw, &role) == nil {
				return &role, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Debug().Err(err).Str("role", name).Msg("role cache read failed")
		}
	}

	role, err := r.roles.RoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if raw, err := json.Marshal(role); err == nil {
			if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
				log.Debug().Err(err).Str("role", name).Msg("role cache write failed")
			}
		}
	}
	return role, nil
}

// Session builds the caller's session. A missing or inactive role yields a
// session with no permissions rather than an error.
func (r *Resolver) Session(ctx context.Context, c *auth.Claims) (*Session, error) {
	role, err := r.Role(ctx, c.Role)
	if errors.Is(err, store.ErrNotFound) {
		return NewSession(c.UserID, c.Email, c.Role, false, nil), nil
	}
	if err != nil {
		return nil, err
	}
	if role.Status != model.RoleStatusActive {
		return NewSession(c.UserID, c.Email, c.Role, false, nil), nil
	}
	return NewSession(c.UserID, c.Email, c.Role, role.HasAllAccess, role.Permissions), nil
}

func (r *Resolver) Invalidate(ctx context.Context, name string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cache.RoleKey(name)); err != nil {
		log.Warn().Err(err).Str("role", name).Msg("role cache invalidate failed")
	}
}
