package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/posts"
	"github.com/oggyb/socialtinder/internal/storage"
)

type postHandler struct {
	svc *posts.Service
	log *slog.Logger
}

func (h *postHandler) Register(r chi.Router) {
	r.Get("/feed", h.feed)
	r.Get("/social/wall", h.wall)
	r.Get("/trending", h.trending)

	r.Get("/posts", h.list)
	r.Post("/posts", h.create)
	r.Get("/posts/{id}", h.show)
	r.Put("/posts/{id}", h.update)
	r.Delete("/posts/{id}", h.delete)
	r.Post("/posts/{id}/like", h.toggleLike)
	r.Get("/posts/{id}/likes", h.likes)

	r.Get("/posts/{id}/comments", h.comments)
	r.Post("/posts/{id}/comments", h.addComment)
	r.Get("/posts/{id}/comments/{commentId}", h.showComment)
	r.Put("/posts/{id}/comments/{commentId}", h.updateComment)
	r.Delete("/posts/{id}/comments/{commentId}", h.deleteComment)
	r.Get("/users/{id}/comments", h.userComments)
	r.Get("/my-comments", h.myComments)
}

func (h *postHandler) list(w http.ResponseWriter, r *http.Request) {
	var author *uint64
	if v := r.URL.Query().Get("user_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, r, h.log, svcErr.Validation(map[string][]string{"user_id": {"The user id field must be an integer."}}))
			return
		}
		author = &n
	}
	out, err := h.svc.List(r.Context(), identity(r), author, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Posts retrieved successfully", out)
}

func (h *postHandler) feed(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Feed(r.Context(), identity(r), pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Feed retrieved successfully", out)
}

func (h *postHandler) wall(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Wall(r.Context(), identity(r), pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Social wall retrieved successfully", out)
}

func (h *postHandler) trending(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Trending(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Trending posts retrieved successfully", out)
}

func (h *postHandler) create(w http.ResponseWriter, r *http.Request) {
	var in posts.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	images, err := filesFrom(r, "images", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Create(r.Context(), identity(r), in, images)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Post created successfully", out)
}

func (h *postHandler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Show(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Post retrieved successfully", out)
}

func (h *postHandler) update(w http.ResponseWriter, r *http.Request) {
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
	out, err := h.svc.Update(r.Context(), identity(r), id, patch)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Post updated successfully", out)
}

func (h *postHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Post deleted successfully", nil)
}

func (h *postHandler) toggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ToggleLike(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	action := "unliked"
	if out.LikedByMe {
		action = "liked"
	}
	ok(w, "Post "+action+" successfully", out)
}

func (h *postHandler) likes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Likes(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Post likes retrieved successfully", out)
}

func (h *postHandler) comments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Comments(r.Context(), id, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Comments retrieved successfully", out)
}

func (h *postHandler) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in posts.CommentInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.AddComment(r.Context(), identity(r), id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Comment added successfully", out)
}

func (h *postHandler) showComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := nestedIDs(r, "commentId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowComment(r.Context(), postID, commentID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Comment retrieved successfully", out)
}

func (h *postHandler) updateComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := nestedIDs(r, "commentId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in posts.CommentUpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UpdateComment(r.Context(), identity(r), postID, commentID, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Comment updated successfully", out)
}

func (h *postHandler) deleteComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := nestedIDs(r, "commentId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteComment(r.Context(), identity(r), postID, commentID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Comment deleted successfully", nil)
}

func (h *postHandler) userComments(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UserComments(r.Context(), userID, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "User comments retrieved successfully", out)
}

func (h *postHandler) myComments(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.UserComments(r.Context(), identity(r).UserID, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "User comments retrieved successfully", out)
}
