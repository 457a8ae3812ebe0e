package store

import (
	"context"

	"clinic-management-api/internal/model"
)

// ----- patients -----

const patientColumns = `id, first_name, last_name, email, phone,
	COALESCE(to_char(date_of_birth, 'YYYY-MM-DD'), ''), gender, address, created_at`

func scanPatient(row interface{ Scan(...any) error }) (*model.Patient, error) {
	p := &model.Patient{}
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.DateOfBirth, &p.Gender, &p.Address, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) CreatePatient(ctx context.Context, p *model.Patient) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO patients (id, first_name, last_name, email, phone, date_of_birth, gender, address)
		 VALUES ($1,$2,$3,$4,$5,NULLIF($6,'')::date,$7,$8)
		 RETURNING created_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender, p.Address,
	).Scan(&p.CreatedAt)
	return translate(err)
}

func (s *Store) PatientByID(ctx context.Context, id string) (*model.Patient, error) {
	return scanPatient(s.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

// ListPatients filters by a case-insensitive name/email fragment when search is set.
func (s *Store) ListPatients(ctx context.Context, search string, limit int) ([]model.Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patientColumns+` FROM patients
		 WHERE $1 = '' OR first_name || ' ' || last_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		 ORDER BY last_name, first_name
		 LIMIT $2`, search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ----- staff -----

const staffColumns = `id, name, email, phone, position, department, room, status, created_at`

func scanStaff(row interface{ Scan(...any) error }) (*model.Staff, error) {
	st := &model.Staff{}
	err := row.Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &st.Position,
		&st.Department, &st.Room, &st.Status, &st.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return st, nil
}

func (s *Store) CreateStaff(ctx context.Context, st *model.Staff) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO staff (id, name, email, phone, position, department, room, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at`,
		st.ID, st.Name, st.Email, st.Phone, st.Position, st.Department, st.Room, st.Status,
	).Scan(&st.CreatedAt)
	return translate(err)
}

func (s *Store) StaffByID(ctx context.Context, id string) (*model.Staff, error) {
	return scanStaff(s.pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
}

func (s *Store) ListStaff(ctx context.Context) ([]model.Staff, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Staff{}
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// ----- doctors -----

const doctorSelect = `SELECT d.id, d.staff_id, d.user_id, d.specialization, d.license_number, s.name, d.created_at
	FROM doctors d JOIN staff s ON s.id = d.staff_id`

func scanDoctor(row interface{ Scan(...any) error }) (*model.Doctor, error) {
	d := &model.Doctor{}
	err := row.Scan(&d.ID, &d.StaffID, &d.UserID, &d.Specialization, &d.LicenseNumber, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

// CreateDoctor returns ErrNotFound when the staff or user reference is dangling.
func (s *Store) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO doctors (id, staff_id, user_id, specialization, license_number)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, (SELECT name FROM staff WHERE id = $2)`,
		d.ID, d.StaffID, d.UserID, d.Specialization, d.LicenseNumber,
	).Scan(&d.CreatedAt, &d.Name)
	return translate(err)
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	return scanDoctor(s.pool.QueryRow(ctx, doctorSelect+` WHERE d.id = $1`, id))
}

func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := s.pool.Query(ctx, doctorSelect+` ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
