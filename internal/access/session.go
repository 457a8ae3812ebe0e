package access

import (
	"context"
	"sort"
)

// Session is the authenticated caller for a single request.
type Session struct {
	UserID       string
	Email        string
	Role         string
	HasAllAccess bool
	permissions  map[string]struct{}
}

func NewSession(userID, email, role string, hasAllAccess bool, perms []string) *Session {
	s := &Session{
		UserID:       userID,
		Email:        email,
		Role:         role,
		HasAllAccess: hasAllAccess,
		permissions:  make(map[string]struct{}, len(perms)),
	}
	for _, p := range perms {
		s.permissions[p] = struct{}{}
	}
	return s
}

func (s *Session) Can(perm string) bool {
	if s == nil {
		return false
	}
	if s.HasAllAccess {
		return true
	}
	_, ok := s.permissions[perm]
	return ok
}

// CanAccessModule reports whether any granted permission belongs to module.
func (s *Session) CanAccessModule(module string) bool {
	if s == nil {
		return false
	}
	if s.HasAllAccess {
		return true
	}
	for p := range s.permissions {
		if Module(p) == module {
			return true
		}
	}
	return false
}

func (s *Session) Permissions() []string {
	out := make([]string, 0, len(s.permissions))
	for p := range s.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
