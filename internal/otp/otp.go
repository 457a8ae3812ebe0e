// Package otp runs the one-time code lifecycle:
//
//	none -> issued -> verified | expired | failed
//
// A challenge is keyed by (email, purpose). Issuing stores a hashed code with
// an expiry and a zeroed attempt counter, then hands the plain code to a
// Sender. If delivery fails the challenge is removed again; there is no retry.
package otp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/auth"
	"clinic-management-api/internal/metrics"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

// ErrInvalidCode is deliberately the same for wrong, expired and missing codes.
var ErrInvalidCode = apperr.Validation("invalid or expired code")

type Store interface {
	Save(ctx context.Context, c *model.Challenge) error
	// Get returns store.ErrNotFound when no challenge is pending.
	Get(ctx context.Context, email string, purpose model.Purpose) (*model.Challenge, error)
	IncrementAttempts(ctx context.Context, email string, purpose model.Purpose) (int, error)
	Delete(ctx context.Context, email string, purpose model.Purpose) error
}

type Sender interface {
	SendCode(ctx context.Context, to, code string, purpose model.Purpose, ttl time.Duration) error
}

type Options struct {
	Length         int
	TTL            time.Duration
	ResendCooldown time.Duration
	// MaxAttempts drops the challenge after this many failures; 0 disables lockout.
	MaxAttempts int
}

type Service struct {
	store  Store
	sender Sender
	opts   Options
	now    func() time.Time
}

func NewService(st Store, sender Sender, opts Options) *Service {
	if opts.Length <= 0 {
		opts.Length = 6
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	return &Service{store: st, sender: sender, opts: opts, now: time.Now}
}

// Issue generates and delivers a fresh code, replacing any pending one.
func (s *Service) Issue(ctx context.Context, email string, purpose model.Purpose) error {
	code, err := auth.GenerateCode(s.opts.Length)
	if err != nil {
		return apperr.Internal(fmt.Errorf("generate code: %w", err))
	}

	now := s.now()
	ch := &model.Challenge{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  auth.HashCode(code),
		ExpiresAt: now.Add(s.opts.TTL),
		SentAt:    now,
	}
	if err := s.store.Save(ctx, ch); err != nil {
		return apperr.Internal(fmt.Errorf("save challenge: %w", err))
	}

	if err := s.sender.SendCode(ctx, email, code, purpose, s.opts.TTL); err != nil {
		metrics.OTPDeliveryFailures.WithLabelValues(string(purpose)).Inc()
		// a code nobody received must not stay valid
		if derr := s.store.Delete(ctx, email, purpose); derr != nil {
			log.Error().Err(derr).Str("email", email).Msg("rollback challenge after failed delivery")
		}
		return apperr.Upstream("failed to send verification code", err)
	}

	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	log.Info().Str("email", email).Str("purpose", string(purpose)).Msg("verification code sent")
	return nil
}

// Resend behaves like Issue but refuses while the previous code is inside
// the cooldown window.
func (s *Service) Resend(ctx context.Context, email string, purpose model.Purpose) error {
	ch, err := s.store.Get(ctx, email, purpose)
	switch {
	case err == nil:
		if wait := ch.SentAt.Add(s.opts.ResendCooldown).Sub(s.now()); wait > 0 {
			return apperr.TooManyRequests("please wait before requesting another code", int(math.Ceil(wait.Seconds())))
		}
	case !errors.Is(err, store.ErrNotFound):
		return apperr.Internal(fmt.Errorf("load challenge: %w", err))
	}
	return s.Issue(ctx, email, purpose)
}

// Verify checks code against the pending challenge. On success the challenge
// is removed when consume is true. Every failure bumps the attempt counter
// and returns ErrInvalidCode.
func (s *Service) Verify(ctx context.Context, email string, purpose model.Purpose, code string, consume bool) error {
	ch, err := s.store.Get(ctx, email, purpose)
	if errors.Is(err, store.ErrNotFound) {
		metrics.OTPVerifyFailures.WithLabelValues(string(purpose)).Inc()
		return ErrInvalidCode
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("load challenge: %w", err))
	}

	if ch.Expired(s.now()) || !auth.CodeMatches(ch.CodeHash, code) {
		s.recordFailure(ctx, email, purpose)
		return ErrInvalidCode
	}

	if consume {
		if err := s.store.Delete(ctx, email, purpose); err != nil {
			return apperr.Internal(fmt.Errorf("clear challenge: %w", err))
		}
	}
	return nil
}

// Discard drops the pending challenge. Callers that verify without consuming
// call it once the state change the code authorised has been committed.
func (s *Service) Discard(ctx context.Context, email string, purpose model.Purpose) error {
	if err := s.store.Delete(ctx, email, purpose); err != nil {
		return apperr.Internal(fmt.Errorf("clear challenge: %w", err))
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, email string, purpose model.Purpose) {
	metrics.OTPVerifyFailures.WithLabelValues(string(purpose)).Inc()

	n, err := s.store.IncrementAttempts(ctx, email, purpose)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("email", email).Msg("record failed code attempt")
		}
		return
	}
	if s.opts.MaxAttempts > 0 && n >= s.opts.MaxAttempts {
		if err := s.store.Delete(ctx, email, purpose); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("drop locked challenge")
			return
		}
		log.Info().Str("email", email).Str("purpose", string(purpose)).Int("attempts", n).Msg("challenge locked out")
	}
}
