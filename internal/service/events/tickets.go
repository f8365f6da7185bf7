package events

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/validation"
)

const ticketNotFound = "Ticket not found"

// EventRef is the event summary attached to ticket listings.
type EventRef struct {
	ID        uint64         `json:"id"`
	Title     string         `json:"title"`
	StartDate datatypes.Date `json:"start_date"`
	EndDate   datatypes.Date `json:"end_date"`
}

type TicketList struct {
	Event   EventRef         `json:"event"`
	Tickets []db.EventTicket `json:"tickets"`
}

func refOf(e *db.Event) EventRef {
	return EventRef{ID: e.ID, Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate}
}

func (s *Service) Tickets(ctx context.Context, eventID uint64) (*TicketList, error) {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := s.tickets.ListByEvent(ctx, e.ID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if rows == nil {
		rows = []db.EventTicket{}
	}
	return &TicketList{Event: refOf(e), Tickets: rows}, nil
}

// TicketInput is pre-filled from the stored ticket type on update.
type TicketInput struct {
	Name              string           `json:"name" validate:"required,max=100"`
	Description       string           `json:"description"`
	Price             *decimal.Decimal `json:"price" validate:"required"`
	QuantityAvailable int              `json:"quantity_available" validate:"required,min=1"`
	SaleStartDate     *string          `json:"sale_start_date" validate:"omitempty,date"`
	SaleEndDate       *string          `json:"sale_end_date" validate:"omitempty,date"`
	IsActive          *bool            `json:"is_active"`
}

func (in *TicketInput) Rules(errs validation.Errors) {
	if in.Price != nil && in.Price.IsNegative() {
		errs.Add("price", "The price field must be at least 0.")
	}
	if errs.Has("sale_start_date") || errs.Has("sale_end_date") {
		return
	}
	if in.SaleStartDate != nil && in.SaleEndDate != nil && *in.SaleStartDate != "" && *in.SaleEndDate != "" &&
		*in.SaleEndDate < *in.SaleStartDate {
		errs.Add("sale_end_date", "The sale end date field must be a date after or equal to sale start date.")
	}
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(validation.DateLayout)
	return &v
}

func dateValue(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := validation.ParseDate(*s)
	return &t
}

func ticketInputFrom(t *db.EventTicket) TicketInput {
	price := t.Price
	active := t.IsActive
	return TicketInput{
		Name:              t.Name,
		Description:       t.Description,
		Price:             &price,
		QuantityAvailable: t.QuantityAvailable,
		SaleStartDate:     dateString(t.SaleStartDate),
		SaleEndDate:       dateString(t.SaleEndDate),
		IsActive:          &active,
	}
}

func applyTicket(t *db.EventTicket, in TicketInput) {
	t.Name = in.Name
	t.Description = in.Description
	t.Price = in.Price.Round(2)
	t.QuantityAvailable = in.QuantityAvailable
	t.SaleStartDate = dateValue(in.SaleStartDate)
	t.SaleEndDate = dateValue(in.SaleEndDate)
	t.IsActive = in.IsActive == nil || *in.IsActive
}

// CreateTicket adds a ticket type. Event creators and admins only.
func (s *Service) CreateTicket(ctx context.Context, id auth.Identity, eventID uint64, in TicketInput) (*db.EventTicket, error) {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !id.CanModify(e.UserID) {
		return nil, svcErr.Forbidden("You are not authorized to add tickets to this event")
	}
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}

	t := db.EventTicket{EventID: e.ID}
	applyTicket(&t, in)
	if err := s.tickets.Create(ctx, &t); err != nil {
		return nil, svcErr.Map(err)
	}
	return &t, nil
}

func (s *Service) ShowTicket(ctx context.Context, eventID, ticketID uint64) (*db.EventTicket, error) {
	t, err := s.tickets.FindInEvent(ctx, eventID, ticketID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, ticketNotFound))
	}
	return t, nil
}

// UpdateTicket applies a partial update. quantity_available may not drop
// below what has already been sold.
func (s *Service) UpdateTicket(ctx context.Context, id auth.Identity, eventID, ticketID uint64, patch validation.Patch) (*db.EventTicket, error) {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !id.CanModify(e.UserID) {
		return nil, svcErr.Forbidden("You are not authorized to update tickets for this event")
	}
	t, err := s.ShowTicket(ctx, e.ID, ticketID)
	if err != nil {
		return nil, err
	}

	in := ticketInputFrom(t)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if !errs.Has("quantity_available") && in.QuantityAvailable < t.QuantitySold {
		errs.Add("quantity_available", fmt.Sprintf("The quantity available field must be at least %d.", t.QuantitySold))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	applyTicket(t, in)
	if err := s.tickets.Save(ctx, t); err != nil {
		return nil, svcErr.Map(err)
	}
	return t, nil
}

// DeleteTicket removes a ticket type nobody has bought yet.
func (s *Service) DeleteTicket(ctx context.Context, id auth.Identity, eventID, ticketID uint64) error {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return err
	}
	if !id.CanModify(e.UserID) {
		return svcErr.Forbidden("You are not authorized to delete tickets for this event")
	}
	t, err := s.ShowTicket(ctx, e.ID, ticketID)
	if err != nil {
		return err
	}
	if t.QuantitySold > 0 {
		return svcErr.DomainRule("Cannot delete ticket type because tickets have already been sold")
	}
	if err := s.tickets.Delete(ctx, t); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

type PurchaseInput struct {
	Quantity       int            `json:"quantity" validate:"required,min=1"`
	PaymentMethod  string         `json:"payment_method" validate:"required,oneof=credit_card paypal bank_transfer"`
	PaymentDetails map[string]any `json:"payment_details" validate:"required"`
}

// ReceiptEvent is the event summary printed on a receipt.
type ReceiptEvent struct {
	EventRef
	Venue    string  `json:"venue"`
	Image    *string `json:"image"`
	ImageURL *string `json:"image_url"`
}

type Receipt struct {
	PurchaseID   uint64          `json:"purchase_id"`
	Event        *ReceiptEvent   `json:"event"`
	TicketType   string          `json:"ticket_type"`
	Quantity     int             `json:"quantity"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Status       string          `json:"status"`
}

func (s *Service) receipt(p db.TicketPurchase, t *db.EventTicket, e *db.Event) Receipt {
	r := Receipt{
		PurchaseID:   p.ID,
		Quantity:     p.Quantity,
		TotalAmount:  p.TotalAmount,
		PurchaseDate: p.CreatedAt,
		Status:       p.PaymentStatus,
	}
	if t != nil {
		r.TicketType = t.Name
	}
	if e != nil {
		r.Event = &ReceiptEvent{
			EventRef: refOf(e),
			Venue:    e.Venue,
			Image:    e.Image,
			ImageURL: storage.URLPtr(s.appCtx.Storage, e.Image),
		}
	}
	return r
}

// rejection reasons, used as metric labels
const (
	rejectEnded       = "event_ended"
	rejectNotStarted  = "sale_not_started"
	rejectSaleEnded   = "sale_ended"
	rejectInactive    = "inactive"
	rejectSoldOut     = "insufficient"
	rejectInvalidForm = "invalid"
)

func (s *Service) reject(reason string, err error) error {
	s.appCtx.Metrics.TicketsRejected.WithLabelValues(reason).Inc()
	return err
}

func notEnough(left int) error {
	return svcErr.DomainRule(fmt.Sprintf("Not enough tickets available. Only %d tickets left.", left))
}

// Purchase buys quantity tickets of one type for the caller.
//
// Behavior:
//   - Event, sale window and availability are checked before the input, so a
//     closed sale reports why even for a malformed request.
//   - Seats are taken with a conditional UPDATE inside the transaction that
//     writes the purchase; concurrent buyers can never oversell.
//   - Payment is recorded as completed; there is no gateway.
func (s *Service) Purchase(ctx context.Context, id auth.Identity, eventID, ticketID uint64, in PurchaseInput) (*Receipt, error) {
	t, err := s.ShowTicket(ctx, eventID, ticketID)
	if err != nil {
		return nil, err
	}
	e, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.appCtx.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case e.EndsAt().Before(now):
		return nil, s.reject(rejectEnded, svcErr.DomainRule("This event has already ended"))
	case t.SaleStartDate != nil && t.SaleStartDate.After(today):
		return nil, s.reject(rejectNotStarted, svcErr.DomainRule("Ticket sales have not started for this ticket type"))
	case t.SaleEndDate != nil && t.SaleEndDate.Before(today):
		return nil, s.reject(rejectSaleEnded, svcErr.DomainRule("Ticket sales have ended for this ticket type"))
	case !t.IsActive:
		return nil, s.reject(rejectInactive, svcErr.DomainRule("This ticket type is not currently available"))
	}

	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, s.reject(rejectInvalidForm, err)
	}
	if in.Quantity > t.Remaining() {
		return nil, s.reject(rejectSoldOut, notEnough(t.Remaining()))
	}

	p := db.TicketPurchase{
		TicketID:       t.ID,
		UserID:         id.UserID,
		Quantity:       in.Quantity,
		TotalAmount:    t.Price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
		PaymentMethod:  in.PaymentMethod,
		PaymentDetails: datatypes.JSONMap(in.PaymentDetails),
		PaymentStatus:  db.PaymentStatusCompleted,
	}
	var soldOut bool
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tickets := s.tickets.WithTx(tx)
		ok, err := tickets.Reserve(ctx, t.ID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			soldOut = true
			return nil
		}
		return tickets.CreatePurchase(ctx, &p)
	})
	if err != nil {
		s.appCtx.Logger.Error("ticket purchase failed", "ticket_id", t.ID, "user_id", id.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	if soldOut {
		// Lost a race for the last seats; report what is left now.
		fresh, err := s.ShowTicket(ctx, eventID, ticketID)
		if err != nil {
			return nil, err
		}
		return nil, s.reject(rejectSoldOut, notEnough(fresh.Remaining()))
	}

	s.appCtx.Metrics.TicketsSold.Add(float64(in.Quantity))
	s.appCtx.Logger.Info("tickets purchased", "ticket_id", t.ID, "user_id", id.UserID, "quantity", in.Quantity)
	out := s.receipt(p, t, e)
	return &out, nil
}

// MyTickets lists the caller's purchases, newest first.
func (s *Service) MyTickets(ctx context.Context, id auth.Identity) ([]Receipt, error) {
	rows, err := s.tickets.PurchasesByUser(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]Receipt, 0, len(rows))
	for _, p := range rows {
		var e *db.Event
		if p.Ticket != nil {
			e = p.Ticket.Event
		}
		out = append(out, s.receipt(p, p.Ticket, e))
	}
	return out, nil
}
