package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/service/messaging"
	"github.com/oggyb/socialtinder/internal/storage"
)

type messagingHandler struct {
	svc *messaging.Service
	log *slog.Logger
}

func (h *messagingHandler) Register(r chi.Router) {
	r.Get("/conversations", h.list)
	r.Post("/conversations", h.create)
	r.Get("/conversations/{id}", h.show)
	r.Put("/conversations/{id}", h.update)
	r.Post("/conversations/{id}/leave", h.leave)
	r.Post("/conversations/{id}/read", h.markRead)

	r.Get("/conversations/{id}/messages", h.messages)
	r.Post("/conversations/{id}/messages", h.send)
	r.Get("/conversations/{id}/messages/{messageId}", h.showMessage)
	r.Put("/conversations/{id}/messages/{messageId}", h.editMessage)
	r.Delete("/conversations/{id}/messages/{messageId}", h.deleteMessage)
	r.Get("/messages/unread", h.unread)
}

func (h *messagingHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Conversations retrieved successfully", out)
}

// create answers 201 for a new thread and 200 when the message joined the
// pair's existing one-on-one conversation.
func (h *messagingHandler) create(w http.ResponseWriter, r *http.Request) {
	var in messaging.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Create(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if out.Existing {
		ok(w, "Message sent to existing conversation", out)
		return
	}
	created(w, "Conversation created successfully", out)
}

func (h *messagingHandler) show(w http.ResponseWriter, r *http.Request) {
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
	ok(w, "Conversation retrieved successfully", out)
}

func (h *messagingHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in messaging.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Update(r.Context(), identity(r), id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Conversation updated successfully", out)
}

func (h *messagingHandler) leave(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Leave(r.Context(), identity(r), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "You have left the conversation", nil)
}

func (h *messagingHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	n, err := h.svc.MarkRead(r.Context(), identity(r), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Messages marked as read", map[string]int64{"updated_count": n})
}

func (h *messagingHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Messages(r.Context(), identity(r), id, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Messages retrieved successfully", out)
}

func (h *messagingHandler) send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in messaging.SendInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	files, err := filesFrom(r, "attachments", storage.AttachmentRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Send(r.Context(), identity(r), id, in, files)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Message sent successfully", out)
}

func (h *messagingHandler) showMessage(w http.ResponseWriter, r *http.Request) {
	convID, msgID, err := nestedIDs(r, "messageId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowMessage(r.Context(), identity(r), convID, msgID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Message retrieved successfully", out)
}

func (h *messagingHandler) editMessage(w http.ResponseWriter, r *http.Request) {
	convID, msgID, err := nestedIDs(r, "messageId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in messaging.EditInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.EditMessage(r.Context(), identity(r), convID, msgID, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Message updated successfully", out)
}

func (h *messagingHandler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	convID, msgID, err := nestedIDs(r, "messageId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteMessage(r.Context(), identity(r), convID, msgID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Message deleted successfully", nil)
}

func (h *messagingHandler) unread(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Unread(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Unread message count retrieved successfully", out)
}
