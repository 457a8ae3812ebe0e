package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/auth"
	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

const adminRole = "admin"

// EnsureAdmin makes sure email belongs to a verified, active account holding
// the admin role, creating it with password when absent. An existing
// account keeps its password. Empty email is a no-op.
func (h *Handler) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	rl, err := h.store.RoleByName(ctx, adminRole)
	if err != nil {
		return fmt.Errorf("load %s role: %w", adminRole, err)
	}
	if !rl.HasAllAccess || rl.Status != model.RoleStatusActive {
		return fmt.Errorf("%s role must be active with full access", adminRole)
	}

	u, err := h.store.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if len(password) < auth.MinPasswordLen {
			return fmt.Errorf("admin password must be at least %d characters", auth.MinPasswordLen)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if name = strings.TrimSpace(name); name == "" {
			name = "Administrator"
		}
		u = &model.User{
			ID:           uuid.New().String(),
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         adminRole,
			IsVerified:   true,
			IsActive:     true,
		}
		if err := h.store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		log.Info().Str("user_id", u.ID).Str("email", email).Msg("admin account created")
	case err != nil:
		return fmt.Errorf("load admin: %w", err)
	default:
		if u.Role != adminRole {
			if err := h.store.SetUserRole(ctx, u.ID, adminRole); err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
			log.Info().Str("user_id", u.ID).Str("previous_role", u.Role).Msg("account promoted to admin")
		}
		if !u.IsVerified {
			if err := h.store.MarkUserVerified(ctx, u.ID); err != nil {
				return fmt.Errorf("verify admin: %w", err)
			}
		}
	}

	if err := h.store.RecountRoleUsers(ctx); err != nil {
		log.Warn().Err(err).Msg("recount role users")
	}
	return nil
}

type userRoleRequest struct {
	Role string `json:"role"`
}

// SetUserRole moves a user to another active role. Full-access roles can only
// be granted by a caller who already has full access. The user's existing
// tokens keep the old role until they log in again.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "user not found")
		return
	}
	var req userRoleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	name := strings.ToLower(strings.TrimSpace(req.Role))
	if name == "" {
		httpx.Fail(w, http.StatusBadRequest, "role is required")
		return
	}

	rl, err := h.store.RoleByName(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rl.Status != model.RoleStatusActive) {
		httpx.Fail(w, http.StatusBadRequest, "unknown role")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	if sess, _ := access.FromContext(r.Context()); rl.HasAllAccess && (sess == nil || !sess.HasAllAccess) {
		httpx.Fail(w, http.StatusForbidden, "only a full-access user can grant this role")
		return
	}

	u, err := h.store.UserByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	previous := u.Role

	if err := h.store.SetUserRole(r.Context(), u.ID, rl.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.Fail(w, http.StatusNotFound, "user not found")
			return
		}
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	h.recountRoles(r)
	h.access.Invalidate(r.Context(), previous)
	h.access.Invalidate(r.Context(), rl.Name)

	u.Role = rl.Name
	log.Info().Str("user_id", u.ID).Str("from", previous).Str("to", rl.Name).Msg("user role changed")
	httpx.OK(w, http.StatusOK, u)
}
