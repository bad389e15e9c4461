package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"hydro360/internal/auth"
	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/internal/validation"
	"hydro360/models"
	"hydro360/repository"
)

type registerRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password"`
	Phone     string `json:"phone" validate:"required,phone"`
	Address   string `json:"address" validate:"required,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type profileRequest struct {
	FirstName       *string `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName        *string `json:"lastName" validate:"omitempty,min=1,max=50"`
	Phone           *string `json:"phone" validate:"omitempty,phone"`
	Address         *string `json:"address" validate:"omitempty,max=200"`
	Avatar          *string `json:"avatar" validate:"omitempty,max=2048"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword" validate:"omitempty,password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	existing, err := s.store.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		serverError(w, r, err, "Registration failed")
		return
	}
	if existing != nil {
		metrics.RecordAuthAttempt("register", false)
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		serverError(w, r, err, "Registration failed")
		return
	}
	u, err := s.store.Users.Create(ctx, &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Address:      req.Address,
		Role:         models.RoleUser,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		metrics.RecordAuthAttempt("register", false)
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		serverError(w, r, err, "Registration failed")
		return
	}

	token, err := auth.IssueToken(s.opts.JWTSecret, u, s.opts.TokenTTL, s.now())
	if err != nil {
		serverError(w, r, err, "Registration failed")
		return
	}
	metrics.RecordAuthAttempt("register", true)
	logging.Ctx(ctx).Info().Str("user_id", u.ID).Msg("user registered")
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	u, err := s.store.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		serverError(w, r, err, "Login failed")
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		metrics.RecordAuthAttempt("login", false)
		logging.Ctx(ctx).Debug().Msg("login rejected: invalid credentials")
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !u.IsActive {
		metrics.RecordAuthAttempt("login", false)
		writeMessage(w, http.StatusForbidden, "Account is deactivated")
		return
	}

	now := s.now().UTC()
	if err := s.store.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		serverError(w, r, err, "Login failed")
		return
	}
	u.LastLogin = &now

	token, err := auth.IssueToken(s.opts.JWTSecret, u, s.opts.TokenTTL, now)
	if err != nil {
		serverError(w, r, err, "Login failed")
		return
	}
	metrics.RecordAuthAttempt("login", true)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	p, err := auth.ParseToken(req.Token, s.opts.JWTSecret)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	u, err := auth.LoadActiveUser(r.Context(), s.store.Users, p)
	switch {
	case errors.Is(err, auth.ErrUnknownUser):
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, auth.ErrDeactivated):
		writeMessage(w, http.StatusForbidden, "Account is deactivated")
	case err != nil:
		serverError(w, r, err, "Token verification failed")
	default:
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentUser(r.Context()))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for _, p := range []*string{req.FirstName, req.LastName, req.Phone, req.Address, req.Avatar} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	u := CurrentUser(ctx)
	upd := repository.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		Avatar:    req.Avatar,
	}
	if req.NewPassword != "" {
		if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
			writeMessage(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		hash, err := auth.HashPassword(req.NewPassword, s.opts.BcryptCost)
		if err != nil {
			serverError(w, r, err, "Failed to update profile")
			return
		}
		upd.PasswordHash = &hash
	}

	if upd.Empty() {
		writeJSON(w, http.StatusOK, u)
		return
	}
	updated, err := s.store.Users.Update(ctx, u.ID, upd)
	if err != nil {
		serverError(w, r, err, "Failed to update profile")
		return
	}
	if updated == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if upd.PasswordHash != nil {
		logging.Ctx(ctx).Info().Str("user_id", u.ID).Msg("password changed")
	}
	writeJSON(w, http.StatusOK, updated)
}

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent"

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	u, err := s.store.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		serverError(w, r, err, "Failed to process forgot password request")
		return
	}
	if u != nil && u.IsActive {
		token, hash, err := auth.NewResetToken()
		if err != nil {
			serverError(w, r, err, "Failed to process forgot password request")
			return
		}
		expires := s.now().UTC().Add(s.opts.ResetTokenTTL)
		if err := s.store.Users.SetResetToken(ctx, u.ID, hash, expires); err != nil {
			serverError(w, r, err, "Failed to process forgot password request")
			return
		}
		if err := s.notifier.SendPasswordReset(ctx, u, token, expires); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("user_id", u.ID).Msg("failed to deliver password reset")
		}
	}
	writeMessage(w, http.StatusOK, forgotPasswordMessage)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	hash, err := auth.HashPassword(req.NewPassword, s.opts.BcryptCost)
	if err != nil {
		serverError(w, r, err, "Failed to reset password")
		return
	}
	u, err := s.store.Users.ConsumeResetToken(ctx, auth.HashResetToken(strings.TrimSpace(req.Token)), s.now().UTC())
	if err != nil {
		serverError(w, r, err, "Failed to reset password")
		return
	}
	if u == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err := s.store.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		serverError(w, r, err, "Failed to reset password")
		return
	}
	logging.Ctx(ctx).Info().Str("user_id", u.ID).Msg("password reset")
	writeMessage(w, http.StatusOK, "Password has been reset")
}
