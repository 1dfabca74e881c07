package handlers

import (
	"errors"
	"net/http"

	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	images      *validator.ImagePolicy
}

func NewAuthHandler(authService *service.AuthService, images *validator.ImagePolicy) *AuthHandler {
	return &AuthHandler{authService: authService, images: images}
}

type authResponse struct {
	User        *userView `json:"user"`
	AccessToken string    `json:"access_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if !decodeJSON(w, r, &input) {
		return
	}

	errs := validator.ValidateRegister(input.Email, input.Username, input.DisplayName, input.Password)
	for field, msg := range validator.ValidateProfile(input.Name, input.DisplayName, input.PhotoURL, h.images) {
		errs.Add(field, msg)
	}
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered")
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken")
		default:
			writeInternal(w, "register", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: newUserView(resp.User), AccessToken: resp.AccessToken})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateLogin(input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		} else {
			writeInternal(w, "login", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: newUserView(resp.User), AccessToken: resp.AccessToken})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			writeInternal(w, "me", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, newUserView(user))
}
