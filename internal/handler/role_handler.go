package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

type roleRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Permissions  []string `json:"permissions"`
	HasAllAccess bool     `json:"hasAllAccess"`
	Status       string   `json:"status"`
}

// toRole validates the payload. Names are stored lower-cased so uniqueness
// is case-insensitive.
func (req roleRequest) toRole() (*model.Role, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return nil, apperr.Validation("role name is required")
	}
	perms, bad := access.Normalize(req.Permissions)
	if bad != "" {
		return nil, apperr.Validation(fmt.Sprintf("unknown permission %q", bad))
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.RoleStatusActive
	}
	if status != model.RoleStatusActive && status != model.RoleStatusInactive {
		return nil, apperr.Validation("status must be active or inactive")
	}
	return &model.Role{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Permissions:  perms,
		HasAllAccess: req.HasAllAccess,
		Status:       status,
	}, nil
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, roles)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	role, err := req.toRole()
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	role.ID = uuid.New().String()

	if err := h.store.CreateRole(r.Context(), role); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httpx.Fail(w, http.StatusConflict, "role already exists")
			return
		}
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	// a role may be created for a name users already carry
	h.recountRoles(r)
	h.access.Invalidate(r.Context(), role.Name)

	log.Info().Str("role", role.Name).Msg("role created")
	httpx.OK(w, http.StatusCreated, role)
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	}
	role, err := h.store.RoleByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, role)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	}
	var req roleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	role, err := req.toRole()
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	role.ID = id

	prev, err := h.store.UpdateRole(r.Context(), role)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	case errors.Is(err, store.ErrDuplicate):
		httpx.Fail(w, http.StatusConflict, "role already exists")
		return
	case err != nil:
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	h.access.Invalidate(r.Context(), prev)
	h.access.Invalidate(r.Context(), role.Name)

	log.Info().Str("role", role.Name).Str("previous", prev).Msg("role updated")
	httpx.OK(w, http.StatusOK, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	}
	name, err := h.store.DeleteRole(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "role not found")
		return
	case errors.Is(err, store.ErrInUse):
		httpx.Fail(w, http.StatusConflict, "role is still assigned to users")
		return
	case err != nil:
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	h.access.Invalidate(r.Context(), name)

	log.Info().Str("role", name).Msg("role deleted")
	httpx.Message(w, "Role deleted")
}

func (h *Handler) RecountRoles(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RecountRoleUsers(r.Context()); err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, roles)
}

type roleOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StaffRoles lists the active roles a staff form may offer.
func (h *Handler) StaffRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	out := make([]roleOption, 0, len(roles))
	for _, rl := range roles {
		if rl.Status == model.RoleStatusActive {
			out = append(out, roleOption{Name: rl.Name, Description: rl.Description})
		}
	}
	httpx.OK(w, http.StatusOK, out)
}
