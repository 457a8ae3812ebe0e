package store

import (
	"context"
	"strings"

	"clinic-management-api/internal/model"
)

const roleColumns = `id, name, description, permissions, has_all_access, user_count, status, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*model.Role, error) {
	r := &model.Role{}
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Permissions, &r.HasAllAccess,
		&r.UserCount, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) RoleByID(ctx context.Context, id string) (*model.Role, error) {
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

func (s *Store) RoleByName(ctx context.Context, name string) (*model.Role, error) {
	return scanRole(s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE LOWER(name) = $1`, strings.ToLower(name)))
}

// CreateRole returns ErrDuplicate when the name clashes case-insensitively.
func (s *Store) CreateRole(ctx context.Context, r *model.Role) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, description, permissions, has_all_access, status)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING user_count, created_at, updated_at`,
		r.ID, r.Name, r.Description, r.Permissions, r.HasAllAccess, r.Status,
	).Scan(&r.UserCount, &r.CreatedAt, &r.UpdatedAt)
	return translate(err)
}

// UpdateRole renames in one transaction so users keep pointing at the role.
func (s *Store) UpdateRole(ctx context.Context, r *model.Role) (previousName string, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `SELECT name FROM roles WHERE id = $1 FOR UPDATE`, r.ID).Scan(&previousName); err != nil {
		return "", translate(err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE roles
		 SET name=$1, description=$2, permissions=$3, has_all_access=$4, status=$5, updated_at=NOW()
		 WHERE id=$6
		 RETURNING user_count, created_at, updated_at`,
		r.Name, r.Description, r.Permissions, r.HasAllAccess, r.Status, r.ID,
	).Scan(&r.UserCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return "", translate(err)
	}

	if previousName != r.Name {
		if _, err := tx.Exec(ctx, `UPDATE users SET role = $1 WHERE role = $2`, r.Name, previousName); err != nil {
			return "", err
		}
	}
	return previousName, tx.Commit(ctx)
}

// DeleteRole refuses with ErrInUse while any user holds the role.
func (s *Store) DeleteRole(ctx context.Context, id string) (name string, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `SELECT name FROM roles WHERE id = $1 FOR UPDATE`, id).Scan(&name); err != nil {
		return "", translate(err)
	}
	var holders int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, name).Scan(&holders); err != nil {
		return "", err
	}
	if holders > 0 {
		return "", ErrInUse
	}
	if _, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return "", err
	}
	return name, tx.Commit(ctx)
}

// RecountRoleUsers recomputes user_count for every role.
func (s *Store) RecountRoleUsers(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE roles r
		 SET user_count = (SELECT COUNT(*) FROM users u WHERE u.role = r.name)`)
	return err
}
