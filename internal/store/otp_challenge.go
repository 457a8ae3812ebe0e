package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-management-api/internal/model"
)

// Challenges keeps pending one-time codes in the otp_challenges table.
type Challenges struct {
	pool *pgxpool.Pool
}

func (s *Store) Challenges() *Challenges {
	return &Challenges{pool: s.pool}
}

// Save replaces any pending challenge for the same email and purpose,
// resetting its attempt counter.
func (c *Challenges) Save(ctx context.Context, ch *model.Challenge) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO otp_challenges (email, purpose, code_hash, attempts, expires_at, sent_at)
		 VALUES ($1,$2,$3,0,$4,$5)
		 ON CONFLICT (email, purpose) DO UPDATE
		 SET code_hash = EXCLUDED.code_hash, attempts = 0,
		     expires_at = EXCLUDED.expires_at, sent_at = EXCLUDED.sent_at`,
		ch.Email, string(ch.Purpose), ch.CodeHash, ch.ExpiresAt, ch.SentAt,
	)
	return err
}

func (c *Challenges) Get(ctx context.Context, email string, purpose model.Purpose) (*model.Challenge, error) {
	ch := &model.Challenge{Email: email, Purpose: purpose}
	err := c.pool.QueryRow(ctx,
		`SELECT code_hash, attempts, expires_at, sent_at
		 FROM otp_challenges WHERE email = $1 AND purpose = $2`, email, string(purpose),
	).Scan(&ch.CodeHash, &ch.Attempts, &ch.ExpiresAt, &ch.SentAt)
	if err != nil {
		return nil, translate(err)
	}
	return ch, nil
}

// IncrementAttempts bumps the failure counter and returns the new value.
func (c *Challenges) IncrementAttempts(ctx context.Context, email string, purpose model.Purpose) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1
		 WHERE email = $1 AND purpose = $2
		 RETURNING attempts`, email, string(purpose),
	).Scan(&n)
	return n, translate(err)
}

func (c *Challenges) Delete(ctx context.Context, email string, purpose model.Purpose) error {
	_, err := c.pool.Exec(ctx,
		`DELETE FROM otp_challenges WHERE email = $1 AND purpose = $2`, email, string(purpose))
	return err
}

// DeleteExpired removes challenges past their expiry and reports how many went.
func (c *Challenges) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
