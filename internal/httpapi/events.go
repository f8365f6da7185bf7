package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/events"
	"github.com/oggyb/socialtinder/internal/storage"
)

type eventHandler struct {
	svc *events.Service
	log *slog.Logger
}

func (h *eventHandler) Register(r chi.Router) {
	r.Get("/events", h.list)
	r.Post("/events", h.create)
	r.Get("/events/featured", h.featured)
	r.Get("/events/upcoming", h.upcoming)
	r.Get("/events/categories", h.categories)
	r.Get("/events/{id}", h.show)
	r.Put("/events/{id}", h.update)
	r.Delete("/events/{id}", h.delete)

	r.Get("/events/{id}/tickets", h.tickets)
	r.Post("/events/{id}/tickets", h.createTicket)
	r.Get("/events/{id}/tickets/{ticketId}", h.showTicket)
	r.Put("/events/{id}/tickets/{ticketId}", h.updateTicket)
	r.Delete("/events/{id}/tickets/{ticketId}", h.deleteTicket)
	r.Post("/events/{id}/tickets/{ticketId}/purchase", h.purchase)
	r.Get("/my-tickets", h.myTickets)
}

func (h *eventHandler) list(w http.ResponseWriter, r *http.Request) {
	f := repository.EventFilter{
		Category: r.URL.Query().Get("category"),
		Location: r.URL.Query().Get("location"),
	}
	var err error
	if f.DateFrom, err = queryDate(r, "date_from"); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if f.DateTo, err = queryDate(r, "date_to"); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.List(r.Context(), f, pageOf(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Events retrieved successfully", out)
}

func (h *eventHandler) create(w http.ResponseWriter, r *http.Request) {
	var in events.EventInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Create(r.Context(), identity(r), in, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Event created successfully", out)
}

func (h *eventHandler) featured(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Featured(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Featured events retrieved successfully", out)
}

func (h *eventHandler) upcoming(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Upcoming(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Upcoming events retrieved successfully", out)
}

func (h *eventHandler) categories(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Event categories retrieved successfully", out)
}

func (h *eventHandler) show(w http.ResponseWriter, r *http.Request) {
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
	ok(w, "Event retrieved successfully", out)
}

func (h *eventHandler) update(w http.ResponseWriter, r *http.Request) {
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
	image, err := fileFrom(r, "image", storage.ImageRule)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Update(r.Context(), identity(r), id, patch, image)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Event updated successfully", out)
}

func (h *eventHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Event deleted successfully", nil)
}

func (h *eventHandler) tickets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Tickets(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Tickets retrieved successfully", out)
}

func (h *eventHandler) createTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in events.TicketInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.CreateTicket(r.Context(), identity(r), id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Ticket created successfully", out)
}

func (h *eventHandler) showTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID, err := nestedIDs(r, "ticketId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.ShowTicket(r.Context(), eventID, ticketID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Ticket retrieved successfully", out)
}

func (h *eventHandler) updateTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID, err := nestedIDs(r, "ticketId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	patch, err := patchFrom(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.UpdateTicket(r.Context(), identity(r), eventID, ticketID, patch)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Ticket updated successfully", out)
}

func (h *eventHandler) deleteTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID, err := nestedIDs(r, "ticketId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.DeleteTicket(r.Context(), identity(r), eventID, ticketID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "Ticket deleted successfully", nil)
}

func (h *eventHandler) purchase(w http.ResponseWriter, r *http.Request) {
	eventID, ticketID, err := nestedIDs(r, "ticketId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in events.PurchaseInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out, err := h.svc.Purchase(r.Context(), identity(r), eventID, ticketID, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	created(w, "Tickets purchased successfully", out)
}

func (h *eventHandler) myTickets(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MyTickets(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ok(w, "User tickets retrieved successfully", out)
}
