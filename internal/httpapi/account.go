package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/service/account"
	"github.com/oggyb/socialtinder/internal/storage"
)

type accountHandler struct {
	svc *account.Service
	log *slog.Logger
}

// RegisterPublic mounts the routes that do not need a token.
func (h *accountHandler) RegisterPublic(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *accountHandler) Register(r chi.Router) {
	r.Post("/logout", h.logout)
	r.Get("/user", h.profile)
	r.Get("/profile", h.profile)
	r.Put("/profile", h.updateProfile)
	r.Post("/profile", h.updateProfile)
}

func (h *accountHandler) register(w http.ResponseWriter, r *http.Request) {
	var in account.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sess, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "User registered successfully", sess)
}

func (h *accountHandler) login(w http.ResponseWriter, r *http.Request) {
	var in account.LoginInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Login successful", sess)
}

func (h *accountHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), identity(r)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Logged out successfully", nil)
}

func (h *accountHandler) profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Profile(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Profile retrieved successfully", map[string]any{"user": u})
}

// updateProfile takes JSON or multipart; profile_photo is only read from
// multipart bodies.
func (h *accountHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	photo, err := fileFrom(r, "profile_photo", storage.ProfilePhotoRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), identity(r), patch, photo)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Profile updated successfully", map[string]any{"user": u})
}
