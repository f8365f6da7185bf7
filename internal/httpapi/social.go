package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/service/social"
)

type socialHandler struct {
	svc *social.Service
	log *slog.Logger
}

func (h *socialHandler) Register(r chi.Router) {
	r.Get("/users", h.byCountry)
	r.Get("/countries", h.countries)
	r.Get("/users/filter", h.filter)
	r.Get("/users/matches", h.matches)
	r.Get("/users/matches/potential", h.potential)
	r.Post("/users/{id}/like", h.like)
	r.Delete("/users/{id}/like", h.unlike)
	r.Get("/my-likes", h.myLikes)

	r.Get("/users/friends", h.friends)
	r.Post("/users/friends", h.addFriend)
	r.Get("/users/friends/requests", h.friendRequests)
	r.Post("/users/friends/requests/{userId}", h.respond)
}

func (h *socialHandler) byCountry(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.UsersByCountry(r.Context(), identity(r), r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Users retrieved successfully", out)
}

func (h *socialHandler) countries(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Countries(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Countries retrieved successfully", out)
}

func (h *socialHandler) filter(w http.ResponseWriter, r *http.Request) {
	var in social.FilterInput
	if err := query(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Filter(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Users filtered successfully", map[string]any{"users": out, "total": len(out)})
}

func (h *socialHandler) potential(w http.ResponseWriter, r *http.Request) {
	var in social.FilterInput
	if err := query(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.PotentialMatches(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Potential matches retrieved successfully", map[string]any{"users": out, "total": len(out)})
}

func (h *socialHandler) matches(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Matches(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Matches retrieved successfully", out)
}

func (h *socialHandler) like(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in social.LikeInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Like(r.Context(), identity(r), target, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "User "+out.Action+"d successfully", out)
}

func (h *socialHandler) unlike(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Unlike(r.Context(), identity(r), target); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Like/dislike removed successfully", nil)
}

func (h *socialHandler) myLikes(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MyLikes(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Likes retrieved successfully", out)
}

func (h *socialHandler) friends(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Friends(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Friends retrieved successfully", out)
}

func (h *socialHandler) addFriend(w http.ResponseWriter, r *http.Request) {
	var in social.FriendInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	friend, err := h.svc.AddFriend(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Friend request sent successfully", map[string]any{"friend": friend})
}

func (h *socialHandler) friendRequests(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.FriendRequests(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Pending friend requests retrieved successfully", out)
}

func (h *socialHandler) respond(w http.ResponseWriter, r *http.Request) {
	requester, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in social.RespondInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	accepted, err := h.svc.RespondFriendRequest(r.Context(), identity(r), requester, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	msg := "Friend request rejected successfully"
	if accepted {
		msg = "Friend request accepted successfully"
	}
	ok(w, msg, nil)
}
