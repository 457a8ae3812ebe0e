package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ----- patients -----

type patientRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	p := &model.Patient{
		ID:          uuid.New().String(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       normalizeEmail(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		DateOfBirth: strings.TrimSpace(req.DateOfBirth),
		Gender:      strings.TrimSpace(req.Gender),
		Address:     strings.TrimSpace(req.Address),
	}
	if p.FirstName == "" {
		httpx.Fail(w, http.StatusBadRequest, "firstName is required")
		return
	}
	if p.DateOfBirth != "" {
		if _, err := time.Parse(model.DateLayout, p.DateOfBirth); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
			return
		}
	}

	if err := h.store.CreatePatient(r.Context(), p); err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

func listLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	out, err := h.store.ListPatients(r.Context(), search, listLimit(r))
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "patient not found")
		return
	}
	p, err := h.store.PatientByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "patient not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

// ----- staff -----

type staffRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Room       string `json:"room"`
	Status     string `json:"status"`
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	st := &model.Staff{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(req.Name),
		Email:      normalizeEmail(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Position:   strings.TrimSpace(req.Position),
		Department: strings.TrimSpace(req.Department),
		Room:       strings.TrimSpace(req.Room),
		Status:     strings.ToLower(strings.TrimSpace(req.Status)),
	}
	if st.Name == "" {
		httpx.Fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if st.Status == "" {
		st.Status = "active"
	}

	if err := h.store.CreateStaff(r.Context(), st); err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusCreated, st)
}

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListStaff(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "staff not found")
		return
	}
	st, err := h.store.StaffByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "staff not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, st)
}

// ----- doctors -----

type doctorRequest struct {
	StaffID        string `json:"staffId"`
	UserID         string `json:"userId"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" {
		httpx.Fail(w, http.StatusBadRequest, "staffId is required")
		return
	}
	if _, err := uuid.Parse(staffID); err != nil {
		httpx.Fail(w, http.StatusNotFound, "staff not found")
		return
	}

	d := &model.Doctor{
		ID:             uuid.New().String(),
		StaffID:        staffID,
		Specialization: strings.TrimSpace(req.Specialization),
		LicenseNumber:  strings.TrimSpace(req.LicenseNumber),
	}
	if uid := strings.TrimSpace(req.UserID); uid != "" {
		if _, err := uuid.Parse(uid); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "userId is not a valid id")
			return
		}
		d.UserID = &uid
	}

	if err := h.store.CreateDoctor(r.Context(), d); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.Fail(w, http.StatusNotFound, "staff or user not found")
			return
		}
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusCreated, d)
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListDoctors(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(w, http.StatusNotFound, "doctor not found")
		return
	}
	d, err := h.store.DoctorByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.OK(w, http.StatusOK, d)
}
