package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
)

type TicketRepository struct {
	crud[db.EventTicket]
}

func NewTicketRepository(database *gorm.DB) *TicketRepository {
	return &TicketRepository{crud[db.EventTicket]{db: database}}
}

func (r *TicketRepository) WithTx(tx *gorm.DB) *TicketRepository {
	return NewTicketRepository(tx)
}

func (r *TicketRepository) ListByEvent(ctx context.Context, eventID uint64) ([]db.EventTicket, error) {
	var out []db.EventTicket
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *TicketRepository) FindInEvent(ctx context.Context, eventID, id uint64) (*db.EventTicket, error) {
	return r.FindOne(ctx, "event_id = ? AND id = ?", eventID, id)
}

// Reserve adds qty to quantity_sold only if that keeps it within
// quantity_available, and reports whether it did.
//
// Behavior:
//   - One UPDATE statement; the WHERE clause is the oversell guard, so two
//     buyers racing for the last seats cannot both succeed.
//   - false with a nil error means not enough seats were left.
//
// Example:
//
//	ok, err := repo.Reserve(ctx, ticketID, 2) // sold 3 of 5 -> ok, sold 5
func (r *TicketRepository) Reserve(ctx context.Context, ticketID uint64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.EventTicket{}).
		Where("id = ? AND quantity_sold + ? <= quantity_available", ticketID, qty).
		UpdateColumn("quantity_sold", gorm.Expr("quantity_sold + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TicketRepository) CreatePurchase(ctx context.Context, p *db.TicketPurchase) error {
	return r.db.WithContext(ctx).Omit("Ticket").Create(p).Error
}

// PurchasesByUser lists userID's purchases, newest first, with ticket and event.
func (r *TicketRepository) PurchasesByUser(ctx context.Context, userID uint64) ([]db.TicketPurchase, error) {
	var out []db.TicketPurchase
	err := newestFirst(r.db.WithContext(ctx).
		Preload("Ticket").
		Preload("Ticket.Event").
		Where("user_id = ?", userID)).
		Find(&out).Error
	return out, err
}
