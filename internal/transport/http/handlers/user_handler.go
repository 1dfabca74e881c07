package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/pkg/validator"
)

// userView is a user as its owner sees it: the stored fields plus the
// resolved name and avatar.
type userView struct {
	*domain.User
	ResolvedName string `json:"resolved_name"`
	AvatarURL    string `json:"avatar_url"`
}

func newUserView(u *domain.User) *userView {
	return &userView{User: u, ResolvedName: u.ResolvedName(), AvatarURL: u.ResolvedAvatar()}
}

type UserHandler struct {
	userService *service.UserService
	images      *validator.ImagePolicy
}

func NewUserHandler(userService *service.UserService, images *validator.ImagePolicy) *UserHandler {
	return &UserHandler{userService: userService, images: images}
}

// List returns the directory as public profiles, most recently active first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Directory(r.Context())
	if err != nil {
		writeInternal(w, "list users", err)
		return
	}

	profiles := make([]domain.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			writeInternal(w, "get user", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var name, displayName string
	if input.Name != nil {
		name = *input.Name
	}
	if input.DisplayName != nil {
		displayName = *input.DisplayName
	}
	if errs := validator.ValidateProfile(name, displayName, input.PhotoURL, h.images); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			writeInternal(w, "update profile", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, newUserView(user))
}
