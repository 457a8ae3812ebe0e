package store

import (
	"context"
	"time"

	"clinic-management-api/internal/model"
)

// InsertAppointment books the slot in a single statement. The partial unique
// index on (staff_id, appt_date, appt_time) makes concurrent bookings for the
// same slot fail with ErrDuplicate instead of double-booking.
func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, patient_id, staff_id, appt_date, appt_time, status, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.StaffID, a.Date, a.Time, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

const viewSelect = `SELECT a.id, a.patient_id, p.first_name, p.last_name, a.staff_id, s.name,
	       a.appt_date, a.appt_time, s.room, a.status, a.notes
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN staff s ON s.id = a.staff_id`

func scanView(row interface{ Scan(...any) error }) (*model.AppointmentView, error) {
	var (
		v        model.AppointmentView
		first    string
		last     string
		apptDate time.Time
	)
	err := row.Scan(&v.ID, &v.PatientID, &first, &last, &v.StaffID, &v.DoctorName,
		&apptDate, &v.Time, &v.Room, &v.Status, &v.Notes)
	if err != nil {
		return nil, translate(err)
	}
	v.PatientName = (&model.Patient{FirstName: first, LastName: last}).FullName()
	v.Date = apptDate.Format(model.DateLayout)
	return &v, nil
}

func (s *Store) AppointmentView(ctx context.Context, id string) (*model.AppointmentView, error) {
	return scanView(s.pool.QueryRow(ctx, viewSelect+` WHERE a.id = $1`, id))
}

// Calendar lists appointments dated within [from, to]. A non-empty doctorID
// matches either the staff id or a doctor record pointing at the staff member.
func (s *Store) Calendar(ctx context.Context, from, to time.Time, doctorID string) ([]model.AppointmentView, error) {
	q := viewSelect + ` WHERE a.appt_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if doctorID != "" {
		q += ` AND (a.staff_id = $3 OR a.staff_id IN (SELECT staff_id FROM doctors WHERE id = $3))`
		args = append(args, doctorID)
	}
	q += ` ORDER BY a.appt_date, a.appt_time`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AppointmentView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// CountFilter narrows CountAppointments. Zero dates leave that side open.
type CountFilter struct {
	From             time.Time
	To               time.Time
	ExcludeCancelled bool
}

func (s *Store) CountAppointments(ctx context.Context, f CountFilter) (int64, error) {
	q := `SELECT COUNT(*) FROM appointments WHERE true`
	var args []any
	if !f.From.IsZero() {
		args = append(args, f.From)
		q += ` AND appt_date >= $1`
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		if len(args) == 1 {
			q += ` AND appt_date <= $1`
		} else {
			q += ` AND appt_date <= $2`
		}
	}
	if f.ExcludeCancelled {
		q += ` AND status <> 'cancelled'`
	}

	var n int64
	err := s.pool.QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// UpdateAppointmentStatus returns ErrDuplicate when re-activating a cancelled
// appointment whose slot has since been taken.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
