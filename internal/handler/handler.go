package handler

import (
	"context"
	"strings"
	"time"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/otp"
	"clinic-management-api/internal/schedule"
)

// Store is the persistence the HTTP layer needs beyond the schedule service.
// *store.Store satisfies it.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	MarkUserVerified(ctx context.Context, id string) error
	UpdateUserPassword(ctx context.Context, id, hash string) error
	SetUserRole(ctx context.Context, id, role string) error

	ListRoles(ctx context.Context) ([]model.Role, error)
	RoleByID(ctx context.Context, id string) (*model.Role, error)
	RoleByName(ctx context.Context, name string) (*model.Role, error)
	CreateRole(ctx context.Context, r *model.Role) error
	UpdateRole(ctx context.Context, r *model.Role) (string, error)
	DeleteRole(ctx context.Context, id string) (string, error)
	RecountRoleUsers(ctx context.Context) error

	CreatePatient(ctx context.Context, p *model.Patient) error
	PatientByID(ctx context.Context, id string) (*model.Patient, error)
	ListPatients(ctx context.Context, search string, limit int) ([]model.Patient, error)
	CreateStaff(ctx context.Context, s *model.Staff) error
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
	ListStaff(ctx context.Context) ([]model.Staff, error)
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
}

type Options struct {
	Secret   string
	TokenTTL time.Duration
	// SecureCookie marks the session cookie Secure; on in production.
	SecureCookie bool
}

type Handler struct {
	store    Store
	schedule *schedule.Service
	codes    *otp.Service
	access   *access.Resolver
	secret   string
	tokenTTL time.Duration
	secure   bool
}

func New(st Store, sched *schedule.Service, codes *otp.Service, resolver *access.Resolver, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Handler{
		store:    st,
		schedule: sched,
		codes:    codes,
		access:   resolver,
		secret:   opts.Secret,
		tokenTTL: opts.TokenTTL,
		secure:   opts.SecureCookie,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
