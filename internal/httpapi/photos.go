package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/service/photos"
	"github.com/oggyb/socialtinder/internal/storage"
)

type photoHandler struct {
	svc *photos.Service
	log *slog.Logger
}

func (h *photoHandler) Register(r chi.Router) {
	r.Get("/photos", h.mine)
	r.Post("/photos", h.store)
	r.Post("/photos/reorder", h.reorder)
	r.Get("/photos/{id}", h.show)
	r.Put("/photos/{id}", h.update)
	r.Delete("/photos/{id}", h.delete)
	r.Post("/photos/{id}/primary", h.setPrimary)
	r.Get("/users/{id}/photos", h.ofUser)
}

func (h *photoHandler) mine(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photos retrieved successfully", out)
}

func (h *photoHandler) ofUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photos retrieved successfully", out)
}

func (h *photoHandler) store(w http.ResponseWriter, r *http.Request) {
	var in photos.StoreInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	photo, err := fileFrom(r, "photo", storage.GalleryPhotoRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Store(r.Context(), identity(r), in, photo)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Photo uploaded successfully", out)
}

func (h *photoHandler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Show(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photo retrieved successfully", out)
}

func (h *photoHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in photos.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Update(r.Context(), identity(r), id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photo updated successfully", out)
}

func (h *photoHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photo deleted successfully", nil)
}

func (h *photoHandler) setPrimary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.SetPrimary(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Primary photo set successfully", out)
}

func (h *photoHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var in photos.ReorderInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Reorder(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Photos reordered successfully", out)
}
