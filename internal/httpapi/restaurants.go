package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/restaurants"
	"github.com/oggyb/socialtinder/internal/storage"
)

type restaurantHandler struct {
	svc *restaurants.Service
	log *slog.Logger
}

func (h *restaurantHandler) Register(r chi.Router) {
	r.Get("/restaurants", h.list)
	r.Post("/restaurants", h.create)
	r.Get("/restaurants/{id}", h.show)
	r.Put("/restaurants/{id}", h.update)
	r.Delete("/restaurants/{id}", h.delete)

	r.Get("/restaurants/{id}/menu-items", h.menu)
	r.Post("/restaurants/{id}/menu-items", h.createMenuItem)
	r.Get("/restaurants/{id}/menu-items/{itemId}", h.showMenuItem)
	r.Put("/restaurants/{id}/menu-items/{itemId}", h.updateMenuItem)
	r.Delete("/restaurants/{id}/menu-items/{itemId}", h.deleteMenuItem)

	r.Get("/restaurants/{id}/reviews", h.reviews)
	r.Post("/restaurants/{id}/reviews", h.createReview)
	r.Get("/restaurants/{id}/my-review", h.myReview)
	r.Get("/restaurants/{id}/reviews/{reviewId}", h.showReview)
	r.Put("/restaurants/{id}/reviews/{reviewId}", h.updateReview)
	r.Delete("/restaurants/{id}/reviews/{reviewId}", h.deleteReview)

	r.Get("/restaurants/{id}/specials", h.specials)
	r.Post("/restaurants/{id}/specials", h.createSpecial)
	r.Get("/restaurants/{id}/specials/{specialId}", h.showSpecial)
	r.Put("/restaurants/{id}/specials/{specialId}", h.updateSpecial)
	r.Delete("/restaurants/{id}/specials/{specialId}", h.deleteSpecial)
	r.Get("/specials/active", h.activeSpecials)
}

func imagesFrom(r *http.Request) (restaurants.Images, error) {
	var im restaurants.Images
	var err error
	if im.Logo, err = fileFrom(r, "logo", storage.ImageRule); err != nil {
		return im, err
	}
	im.CoverPhoto, err = fileFrom(r, "cover_photo", storage.ImageRule)
	return im, err
}

func (h *restaurantHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.RestaurantFilter{CuisineType: q.Get("cuisine_type"), PriceRange: q.Get("price_range")}
	out, err := h.svc.List(r.Context(), f, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Restaurants retrieved successfully", out)
}

func (h *restaurantHandler) create(w http.ResponseWriter, r *http.Request) {
	var in restaurants.Input
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	im, err := imagesFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Create(r.Context(), identity(r), in, im)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Restaurant created successfully", out)
}

func (h *restaurantHandler) show(w http.ResponseWriter, r *http.Request) {
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
	ok(w, "Restaurant retrieved successfully", out)
}

func (h *restaurantHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	im, err := imagesFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Update(r.Context(), identity(r), id, patch, im)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Restaurant updated successfully", out)
}

func (h *restaurantHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Restaurant deleted successfully", nil)
}

func (h *restaurantHandler) menu(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Menu(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Menu items retrieved successfully", out)
}

func (h *restaurantHandler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in restaurants.MenuItemInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.CreateMenuItem(r.Context(), identity(r), id, in, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Menu item created successfully", out)
}

func (h *restaurantHandler) showMenuItem(w http.ResponseWriter, r *http.Request) {
	restaurantID, itemID, err := nestedIDs(r, "itemId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowMenuItem(r.Context(), restaurantID, itemID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Menu item retrieved successfully", out)
}

func (h *restaurantHandler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	restaurantID, itemID, err := nestedIDs(r, "itemId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UpdateMenuItem(r.Context(), identity(r), restaurantID, itemID, patch, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Menu item updated successfully", out)
}

func (h *restaurantHandler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	restaurantID, itemID, err := nestedIDs(r, "itemId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteMenuItem(r.Context(), identity(r), restaurantID, itemID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Menu item deleted successfully", nil)
}

func (h *restaurantHandler) reviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Reviews(r.Context(), id, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Reviews retrieved successfully", out)
}

func (h *restaurantHandler) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in restaurants.ReviewInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	photos, err := filesFrom(r, "photos", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.CreateReview(r.Context(), identity(r), id, in, photos)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Review submitted successfully", out)
}

func (h *restaurantHandler) myReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.MyReview(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "User review retrieved successfully", out)
}

func (h *restaurantHandler) showReview(w http.ResponseWriter, r *http.Request) {
	restaurantID, reviewID, err := nestedIDs(r, "reviewId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowReview(r.Context(), restaurantID, reviewID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Review retrieved successfully", out)
}

func (h *restaurantHandler) updateReview(w http.ResponseWriter, r *http.Request) {
	restaurantID, reviewID, err := nestedIDs(r, "reviewId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	photos, err := filesFrom(r, "photos", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UpdateReview(r.Context(), identity(r), restaurantID, reviewID, patch, photos)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Review updated successfully", out)
}

func (h *restaurantHandler) deleteReview(w http.ResponseWriter, r *http.Request) {
	restaurantID, reviewID, err := nestedIDs(r, "reviewId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteReview(r.Context(), identity(r), restaurantID, reviewID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Review deleted successfully", nil)
}

func (h *restaurantHandler) specials(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Specials(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Specials retrieved successfully", out)
}

func (h *restaurantHandler) createSpecial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in restaurants.SpecialInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.CreateSpecial(r.Context(), identity(r), id, in, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Special offer created successfully", out)
}

func (h *restaurantHandler) showSpecial(w http.ResponseWriter, r *http.Request) {
	restaurantID, specialID, err := nestedIDs(r, "specialId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowSpecial(r.Context(), restaurantID, specialID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Special offer retrieved successfully", out)
}

func (h *restaurantHandler) updateSpecial(w http.ResponseWriter, r *http.Request) {
	restaurantID, specialID, err := nestedIDs(r, "specialId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UpdateSpecial(r.Context(), identity(r), restaurantID, specialID, patch, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Special offer updated successfully", out)
}

func (h *restaurantHandler) deleteSpecial(w http.ResponseWriter, r *http.Request) {
	restaurantID, specialID, err := nestedIDs(r, "specialId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteSpecial(r.Context(), identity(r), restaurantID, specialID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Special offer deleted successfully", nil)
}

func (h *restaurantHandler) activeSpecials(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ActiveSpecials(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Active specials retrieved successfully", out)
}
