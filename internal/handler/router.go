package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	// AuthLimiter throttles the public /auth endpoints per client IP; nil disables it.
	AuthLimiter *middleware.RateLimiter
	Metrics     bool
	Health      *Health
}

func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		// credentials cannot be combined with a wildcard origin
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	authn := middleware.Session(h.secret, h.access)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.AuthLimiter != nil {
				r.Use(middleware.RateLimit(cfg.AuthLimiter))
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/send-otp", h.SendOTP)
			r.Post("/resend-otp", h.ResendOTP)
			r.Post("/verify-otp", h.VerifyOTP)
			r.Post("/reset-password", h.ResetPassword)
			r.Post("/forgot-password", h.ForgotPassword)
		})
		r.Post("/logout", h.Logout)
		r.With(authn).Get("/me", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/appointments", func(r chi.Router) {
			r.With(middleware.Require(access.AppointmentsCreate)).Post("/", h.CreateAppointment)
			r.With(middleware.Require(access.AppointmentsRead)).Get("/calendar", h.Calendar)
			r.With(middleware.Require(access.AppointmentsRead)).Get("/stats", h.AppointmentStats)
			r.With(middleware.Require(access.AppointmentsRead)).Get("/{id}", h.GetAppointment)
			r.With(middleware.Require(access.AppointmentsUpdate)).Patch("/{id}/status", h.SetAppointmentStatus)
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(middleware.Require(access.RolesRead)).Get("/", h.ListRoles)
			r.With(middleware.Require(access.RolesCreate)).Post("/", h.CreateRole)
			r.With(middleware.Require(access.RolesUpdate)).Post("/recount", h.RecountRoles)
			r.With(middleware.Require(access.RolesRead)).Get("/{id}", h.GetRole)
			r.With(middleware.Require(access.RolesUpdate)).Put("/{id}", h.UpdateRole)
			r.With(middleware.Require(access.RolesDelete)).Delete("/{id}", h.DeleteRole)
		})

		r.With(middleware.Require(access.RolesUpdate)).Put("/users/{id}/role", h.SetUserRole)

		r.Route("/patients", func(r chi.Router) {
			r.With(middleware.Require(access.PatientsRead)).Get("/", h.ListPatients)
			r.With(middleware.Require(access.PatientsCreate)).Post("/", h.CreatePatient)
			r.With(middleware.Require(access.PatientsRead)).Get("/{id}", h.GetPatient)
		})

		r.Route("/staff", func(r chi.Router) {
			r.With(middleware.RequireModule(access.ModuleStaff)).Get("/roles", h.StaffRoles)
			r.With(middleware.Require(access.StaffRead)).Get("/", h.ListStaff)
			r.With(middleware.Require(access.StaffCreate)).Post("/", h.CreateStaff)
			r.With(middleware.Require(access.StaffRead)).Get("/{id}", h.GetStaff)
		})

		r.Route("/doctors", func(r chi.Router) {
			r.With(middleware.Require(access.DoctorsRead)).Get("/", h.ListDoctors)
			r.With(middleware.Require(access.DoctorsCreate)).Post("/", h.CreateDoctor)
			r.With(middleware.Require(access.DoctorsRead)).Get("/{id}", h.GetDoctor)
		})
	})

	return r
}
