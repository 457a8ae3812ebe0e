package model

import "time"

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password-reset"
)

func (p Purpose) Valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// Challenge is a pending one-time code for an email address. At most one
// exists per (Email, Purpose); issuing a new code replaces it.
type Challenge struct {
	Email     string
	Purpose   Purpose
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	SentAt    time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
