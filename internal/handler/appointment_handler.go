package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/schedule"
)

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req schedule.BookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v, err := h.schedule.Book(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, v)
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.schedule.Calendar(r.Context(), q.Get("startDate"), q.Get("endDate"), q.Get("doctorId"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) AppointmentStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.schedule.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, st)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	v, err := h.schedule.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, v)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v, err := h.schedule.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, v)
}
