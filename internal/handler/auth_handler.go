package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/apperr"
	"clinic-management-api/internal/auth"
	"clinic-management-api/internal/httpx"
	"clinic-management-api/internal/middleware"
	"clinic-management-api/internal/model"
	"clinic-management-api/internal/otp"
	"clinic-management-api/internal/store"
)

const (
	defaultRole          = "patient"
	forgotPasswordReply  = "If an account exists for that email, a reset code has been sent"
	verificationCodeSent = "Verification code sent"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	if len(req.Password) < auth.MinPasswordLen {
		httpx.Fail(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLen))
		return
	}

	// staff roles are granted through PUT /users/{id}/role, never at sign-up
	if role := strings.ToLower(strings.TrimSpace(req.Role)); role != "" && role != defaultRole {
		httpx.Fail(w, http.StatusForbidden, "role cannot be self-assigned")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         defaultRole,
		IsActive:     true,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httpx.Fail(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	h.recountRoles(r)

	log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")
	httpx.OK(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.store.UserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		httpx.Fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !u.IsActive {
		httpx.Fail(w, http.StatusForbidden, "account is disabled")
		return
	}
	if !u.IsVerified {
		httpx.Fail(w, http.StatusForbidden, "email not verified")
		return
	}

	tok, err := auth.MakeToken(u.ID, u.Email, u.Role, h.secret, h.tokenTTL)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.OK(w, http.StatusOK, loginResponse{Token: tok, User: u})
}

// Logout clears the session cookie. Tokens are stateless, so a copied bearer
// token stays valid until it expires.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.Message(w, "Logged out")
}

type meResponse struct {
	UserID       string   `json:"userId"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	HasAllAccess bool     `json:"hasAllAccess"`
	Permissions  []string `json:"permissions"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := access.FromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	httpx.OK(w, http.StatusOK, meResponse{
		UserID:       sess.UserID,
		Email:        sess.Email,
		Role:         sess.Role,
		HasAllAccess: sess.HasAllAccess,
		Permissions:  sess.Permissions(),
	})
}

type otpRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// codeTarget validates an OTP request and loads the account it is for.
func (h *Handler) codeTarget(r *http.Request, req otpRequest) (*model.User, model.Purpose, error) {
	email := normalizeEmail(req.Email)
	purpose := model.Purpose(strings.TrimSpace(req.Type))
	if email == "" || purpose == "" {
		return nil, "", apperr.Validation("email and type are required")
	}
	if !purpose.Valid() {
		return nil, "", apperr.Validation("type must be registration or password-reset")
	}

	u, err := h.store.UserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", apperr.NotFound("no account found for this email")
	}
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	if purpose == model.PurposeRegistration && u.IsVerified {
		return nil, "", apperr.Validation("email is already verified")
	}
	if purpose == model.PurposePasswordReset && !u.IsActive {
		return nil, "", apperr.Forbidden("account is disabled")
	}
	return u, purpose, nil
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	u, purpose, err := h.codeTarget(r, req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.codes.Issue(r.Context(), u.Email, purpose); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, verificationCodeSent)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	u, purpose, err := h.codeTarget(r, req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.codes.Resend(r.Context(), u.Email, purpose); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, verificationCodeSent)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Type  string `json:"type"`
}

type verifyResponse struct {
	Verified   bool   `json:"verified"`
	RedirectTo string `json:"redirectTo"`
}

// VerifyOTP checks a code. A registration code marks the account verified and
// is then dropped; a password-reset code stays pending until ResetPassword.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	email := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	purpose := model.Purpose(strings.TrimSpace(req.Type))
	if email == "" || code == "" || purpose == "" {
		httpx.Fail(w, http.StatusBadRequest, "email, code and type are required")
		return
	}
	if !purpose.Valid() {
		httpx.Fail(w, http.StatusBadRequest, "type must be registration or password-reset")
		return
	}

	u, err := h.store.UserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, otp.ErrInvalidCode)
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	if err := h.codes.Verify(r.Context(), u.Email, purpose, code, false); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if purpose == model.PurposeRegistration {
		// the code stays valid until the account is actually marked
		if err := h.store.MarkUserVerified(r.Context(), u.ID); err != nil {
			httpx.Error(w, r, apperr.Internal(err))
			return
		}
		h.discardCode(r, u.Email, purpose)
		log.Info().Str("user_id", u.ID).Msg("email verified")
		httpx.JSON(w, http.StatusOK, httpx.Envelope{
			Success: true,
			Message: "Email verified",
			Data:    verifyResponse{Verified: true, RedirectTo: "/login"},
		})
		return
	}

	httpx.JSON(w, http.StatusOK, httpx.Envelope{
		Success: true,
		Message: "Code verified",
		Data:    verifyResponse{Verified: true, RedirectTo: "/reset-password"},
	})
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	email := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" || req.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "email, code and password are required")
		return
	}
	// checked before the code so a weak password does not burn it
	if len(req.Password) < auth.MinPasswordLen {
		httpx.Fail(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLen))
		return
	}

	u, err := h.store.UserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, otp.ErrInvalidCode)
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	if err := h.codes.Verify(r.Context(), u.Email, model.PurposePasswordReset, code, false); err != nil {
		httpx.Error(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), u.ID, hash); err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}

	h.discardCode(r, u.Email, model.PurposePasswordReset)

	log.Info().Str("user_id", u.ID).Msg("password reset")
	httpx.JSON(w, http.StatusOK, httpx.Envelope{
		Success: true,
		Message: "Password updated",
		Data:    verifyResponse{Verified: true, RedirectTo: "/login"},
	})
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers the same way whether or not the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		httpx.Fail(w, http.StatusBadRequest, "email is required")
		return
	}

	u, err := h.store.UserByEmail(r.Context(), email)
	switch {
	case err == nil && u.IsActive:
		if err := h.codes.Issue(r.Context(), u.Email, model.PurposePasswordReset); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("forgot-password code not delivered")
		}
	case err != nil && !errors.Is(err, store.ErrNotFound):
		log.Error().Err(err).Msg("forgot-password lookup")
	}

	httpx.Message(w, forgotPasswordReply)
}

func (h *Handler) recountRoles(r *http.Request) {
	if err := h.store.RecountRoleUsers(r.Context()); err != nil {
		log.Warn().Err(err).Msg("recount role users")
	}
}

// discardCode drops a challenge whose purpose has been fulfilled. A failure
// leaves the code to expire on its own.
func (h *Handler) discardCode(r *http.Request, email string, purpose model.Purpose) {
	if err := h.codes.Discard(r.Context(), email, purpose); err != nil {
		log.Warn().Err(err).Str("purpose", string(purpose)).Msg("discard used code")
	}
}
