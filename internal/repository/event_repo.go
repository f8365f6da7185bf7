package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

type EventRepository struct {
	crud[db.Event]
}

func NewEventRepository(database *gorm.DB) *EventRepository {
	return &EventRepository{crud[db.Event]{db: database}}
}

func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return NewEventRepository(tx)
}

// EventFilter narrows the event listing. Zero values are ignored.
type EventFilter struct {
	Category string
	DateFrom *time.Time
	DateTo   *time.Time
	Location string
}

func withTickets(q *gorm.DB) *gorm.DB {
	return q.Preload("Tickets", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") })
}

func byStartDate(q *gorm.DB) *gorm.DB {
	return withTickets(q).Order("start_date ASC").Order("id ASC")
}

// List pages through events, soonest first.
//
// Behavior:
//   - DateFrom bounds start_date from below, DateTo bounds end_date from above.
//   - Location is a substring match.
func (r *EventRepository) List(ctx context.Context, f EventFilter, p pagination.Params) (pagination.Page[db.Event], error) {
	q := r.db.WithContext(ctx).Model(&db.Event{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.DateFrom != nil {
		q = q.Where("start_date >= ?", dateOnly(*f.DateFrom))
	}
	if f.DateTo != nil {
		q = q.Where("end_date <= ?", dateOnly(*f.DateTo))
	}
	if f.Location != "" {
		q = q.Where("location LIKE ?", "%"+f.Location+"%")
	}
	return pagination.Paginate[db.Event](q, p, byStartDate)
}

// FindDetailed loads an event with its ticket types and promoter.
func (r *EventRepository) FindDetailed(ctx context.Context, id uint64) (*db.Event, error) {
	var ev db.Event
	if err := withTickets(r.db.WithContext(ctx)).Preload("Promoter").First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// Featured returns published featured events that have not ended by today.
func (r *EventRepository) Featured(ctx context.Context, today time.Time, limit int) ([]db.Event, error) {
	var out []db.Event
	err := byStartDate(r.db.WithContext(ctx)).
		Where("is_featured = ? AND is_published = ? AND end_date >= ?", true, true, dateOnly(today)).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Upcoming returns published events starting today or later.
func (r *EventRepository) Upcoming(ctx context.Context, today time.Time, limit int) ([]db.Event, error) {
	var out []db.Event
	err := byStartDate(r.db.WithContext(ctx)).
		Where("is_published = ? AND start_date >= ?", true, dateOnly(today)).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Categories returns the distinct non-empty categories, sorted.
func (r *EventRepository) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&db.Event{}).
		Distinct("category").
		Where("category <> ''").
		Order("category ASC").
		Pluck("category", &out).Error
	return out, err
}

// IncrementViews bumps the view counter in one statement.
func (r *EventRepository) IncrementViews(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&db.Event{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

// DeleteCascade removes the event with its ticket types and their purchases.
func (r *EventRepository) DeleteCascade(ctx context.Context, id uint64) error {
	tickets := r.db.Model(&db.EventTicket{}).Select("id").Where("event_id = ?", id)
	if err := r.db.WithContext(ctx).Where("ticket_id IN (?)", tickets).Delete(&db.TicketPurchase{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("event_id = ?", id).Delete(&db.EventTicket{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&db.Event{}, id).Error
}
