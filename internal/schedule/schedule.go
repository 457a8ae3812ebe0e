// Package schedule books appointments and serves the calendar and stats
// read paths.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/metrics"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

const (
	timeLayout      = "15:04"
	calendarDefault = 30 * 24 * time.Hour
	upcomingDays    = 7
)

type Repository interface {
	PatientByID(ctx context.Context, id string) (*model.Patient, error)
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentView(ctx context.Context, id string) (*model.AppointmentView, error)
	Calendar(ctx context.Context, from, to time.Time, doctorID string) ([]model.AppointmentView, error)
	CountAppointments(ctx context.Context, f store.CountFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	UpdateAppointmentStatus(ctx context.Context, id, status string) error
}

type BookRequest struct {
	PatientID string `json:"patientId"`
	StaffID   string `json:"staffId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// today is the current calendar date as a UTC midnight, the form dates are
// stored and compared in.
func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(v string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, v, time.UTC)
}

func parseSlotTime(v string) (string, bool) {
	if len(v) != len(timeLayout) {
		return "", false
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return "", false
	}
	return t.Format(timeLayout), true
}

// Book validates the request, checks that patient and staff exist, then
// claims the slot with a single insert. Two bookings racing for the same
// (staff, date, time) cannot both succeed: the loser gets a Conflict.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.AppointmentView, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"patientId", req.PatientID},
		{"staffId", req.StaffID},
		{"date", req.Date},
		{"time", req.Time},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	slot, ok := parseSlotTime(req.Time)
	if !ok {
		return nil, apperr.Validation("time must be HH:MM")
	}

	patient, err := s.lookupPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	staff, err := s.lookupStaff(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:        uuid.New().String(),
		PatientID: patient.ID,
		StaffID:   staff.ID,
		Date:      date,
		Time:      slot,
		Status:    model.StatusScheduled,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if err := s.repo.InsertAppointment(ctx, a); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			metrics.SlotConflicts.Inc()
			return nil, apperr.Conflict("time slot is already booked")
		case errors.Is(err, store.ErrNotFound):
			// patient or staff removed between lookup and insert
			return nil, apperr.NotFound("patient or staff not found")
		}
		return nil, apperr.Internal(fmt.Errorf("insert appointment: %w", err))
	}

	metrics.AppointmentsBooked.Inc()
	log.Info().Str("appointment_id", a.ID).Str("staff_id", a.StaffID).
		Str("date", req.Date).Str("time", slot).Msg("appointment booked")

	return &model.AppointmentView{
		ID:          a.ID,
		PatientID:   patient.ID,
		PatientName: patient.FullName(),
		StaffID:     staff.ID,
		DoctorName:  staff.Name,
		Date:        date.Format(model.DateLayout),
		Time:        slot,
		Room:        staff.Room,
		Status:      a.Status,
		Notes:       a.Notes,
	}, nil
}

func (s *Service) lookupPatient(ctx context.Context, id string) (*model.Patient, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("patient not found")
	}
	p, err := s.repo.PatientByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load patient: %w", err))
	}
	return p, nil
}

func (s *Service) lookupStaff(ctx context.Context, id string) (*model.Staff, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("staff not found")
	}
	st, err := s.repo.StaffByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("staff not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load staff: %w", err))
	}
	return st, nil
}

// Calendar returns appointments between start and end inclusive. Empty start
// means today; empty end means start plus 30 days.
func (s *Service) Calendar(ctx context.Context, start, end, doctorID string) ([]model.AppointmentView, error) {
	from := s.today()
	if start != "" {
		d, err := parseDate(start)
		if err != nil {
			return nil, apperr.Validation("startDate must be YYYY-MM-DD")
		}
		from = d
	}
	to := from.Add(calendarDefault)
	if end != "" {
		d, err := parseDate(end)
		if err != nil {
			return nil, apperr.Validation("endDate must be YYYY-MM-DD")
		}
		to = d
	}
	if to.Before(from) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}
	if doctorID != "" {
		if _, err := uuid.Parse(doctorID); err != nil {
			return nil, apperr.Validation("doctorId is not a valid id")
		}
	}

	out, err := s.repo.Calendar(ctx, from, to, doctorID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("calendar: %w", err))
	}
	return out, nil
}

// Stats runs the four counts concurrently. Upcoming covers non-cancelled
// appointments from tomorrow through seven days out.
func (s *Service) Stats(ctx context.Context) (*model.AppointmentStats, error) {
	today := s.today()
	stats := &model.AppointmentStats{}
	var byStatus map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Total, err = s.repo.CountAppointments(gctx, store.CountFilter{})
		return err
	})
	g.Go(func() (err error) {
		stats.Today, err = s.repo.CountAppointments(gctx, store.CountFilter{From: today, To: today})
		return err
	})
	g.Go(func() (err error) {
		stats.Upcoming, err = s.repo.CountAppointments(gctx, store.CountFilter{
			From:             today.AddDate(0, 0, 1),
			To:               today.AddDate(0, 0, upcomingDays),
			ExcludeCancelled: true,
		})
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.repo.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(fmt.Errorf("appointment stats: %w", err))
	}

	stats.ByStatus = make(map[string]int64, len(model.Statuses))
	for _, st := range model.Statuses {
		stats.ByStatus[st] = 0
	}
	for st, n := range byStatus {
		stats.ByStatus[st] = n
	}
	return stats, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.AppointmentView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("appointment not found")
	}
	v, err := s.repo.AppointmentView(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load appointment: %w", err))
	}
	return v, nil
}

// SetStatus moves an appointment to status. Moving a cancelled appointment
// back to an active status fails with Conflict when its slot was re-booked.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*model.AppointmentView, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperr.Validation("status is required")
	}
	if !model.ValidStatus(status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("appointment not found")
	}

	err := s.repo.UpdateAppointmentStatus(ctx, id, status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("appointment not found")
	case errors.Is(err, store.ErrDuplicate):
		metrics.SlotConflicts.Inc()
		return nil, apperr.Conflict("time slot is already booked")
	case err != nil:
		return nil, apperr.Internal(fmt.Errorf("update status: %w", err))
	}

	log.Info().Str("appointment_id", id).Str("status", status).Msg("appointment status changed")
	return s.Get(ctx, id)
}
