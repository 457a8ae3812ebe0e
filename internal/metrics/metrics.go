package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinic_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	AppointmentsBooked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_appointments_booked_total",
		Help: "Appointments successfully booked.",
	})

	SlotConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_appointment_slot_conflicts_total",
		Help: "Booking or status changes rejected because the slot was taken.",
	})

	OTPIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_otp_issued_total",
		Help: "One-time codes delivered, by purpose.",
	}, []string{"purpose"})

	OTPDeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_otp_delivery_failures_total",
		Help: "One-time codes that could not be delivered, by purpose.",
	}, []string{"purpose"})

	OTPVerifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_otp_verify_failures_total",
		Help: "Rejected one-time code checks, by purpose.",
	}, []string{"purpose"})
)
