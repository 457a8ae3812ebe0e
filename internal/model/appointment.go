package model

import "time"

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// Statuses lists every appointment status in display order.
var Statuses = []string{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Appointment occupies the slot (StaffID, Date, Time) while its status is not cancelled.
type Appointment struct {
	ID        string
	PatientID string
	StaffID   string
	Date      time.Time
	Time      string
	Status    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentView is the denormalised shape returned to clients.
type AppointmentView struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId,omitempty"`
	PatientName string `json:"patientName"`
	StaffID     string `json:"staffId,omitempty"`
	DoctorName  string `json:"doctorName"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Room        string `json:"room,omitempty"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

type AppointmentStats struct {
	Total    int64            `json:"total"`
	Today    int64            `json:"today"`
	Upcoming int64            `json:"upcoming"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// DateLayout is the wire and storage format of appointment dates.
const DateLayout = "2006-01-02"
