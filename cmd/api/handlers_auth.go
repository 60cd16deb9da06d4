package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"github.com/PaulBabatuyi/socialchat/internal/validate"
)

type signupRequest struct {
	Username   string `json:"username" validate:"min=3"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"mobile"`
	Password   string `json:"password" validate:"min=6"`
	Gender     string `json:"gender" validate:"gender"`
	DOB        string `json:"dob" validate:"isodate"`
	Profession string `json:"profession" validate:"min=3"`
	Address    string `json:"address" validate:"min=10"`
}

type loginRequest struct {
	Username string `json:"username" validate:"min=3"`
	Password string `json:"password" validate:"min=6"`
}

type checkEmailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"min=6"`
}

// handleSignup validates the profile, hashes the password and stores the user.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalize.Email(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Profession = strings.TrimSpace(req.Profession)
	req.Address = strings.TrimSpace(req.Address)

	if err := validate.Struct(req); err != nil {
		s.validationError(w, err)
		return
	}
	dob, _ := validate.ParseDate(req.DOB) // checked by the isodate rule

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.serverError(w, r, "Error creating user", err)
		return
	}

	_, err = s.users.CreateUser(r.Context(), &data.User{
		Username:   normalize.Text(req.Username),
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   hashed,
		Gender:     normalize.Gender(req.Gender),
		DOB:        dob,
		Profession: normalize.Text(req.Profession),
		Address:    normalize.Text(req.Address),
	})
	if err != nil {
		if errors.Is(err, data.ErrDuplicateUser) {
			s.writeError(w, http.StatusConflict, "User already exists")
			return
		}
		s.serverError(w, r, "Error creating user", err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleLogin checks the credentials and issues a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if err := validate.Struct(req); err != nil {
		s.validationError(w, err)
		return
	}

	// Usernames are stored escaped
	user, err := s.users.GetUserByUsername(r.Context(), normalize.Text(req.Username))
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			s.writeError(w, http.StatusUnauthorized, "User does not exist")
			return
		}
		s.serverError(w, r, "Error logging in", err)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		s.writeError(w, http.StatusUnauthorized, "Incorrect password")
		return
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		s.serverError(w, r, "Error logging in", err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"success": true, "token": token})
}

// handleCheckEmail reports whether a user with the email exists.
func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req checkEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exists, err := s.users.EmailExists(r.Context(), normalize.Email(req.Email))
	if err != nil {
		s.serverError(w, r, "Error checking email", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"exists": exists})
}

// handleResetPassword overwrites the password of the user owning email.
// No proof of ownership is asked for, so every use is logged.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = normalize.Email(req.Email)

	if err := validate.Struct(req); err != nil {
		s.validationError(w, err)
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.serverError(w, r, "Error resetting password", err)
		return
	}

	if err := s.users.UpdatePassword(r.Context(), req.Email, hashed); err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			s.writeError(w, http.StatusNotFound, "User does not exist")
			return
		}
		s.serverError(w, r, "Error resetting password", err)
		return
	}

	s.log.WithField("remote", r.RemoteAddr).Warn("password reset without ownership proof")
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Password reset successfully"})
}

// handleProtected echoes the verified claims.
func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"message": "This is a protected route", "user": claims})
}
