package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentCreditCard   = "credit_card"
	PaymentPaypal       = "paypal"
	PaymentBankTransfer = "bank_transfer"

	PaymentStatusCompleted = "completed"
)

type Event struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint64          `gorm:"not null;index" json:"user_id"`
	PromoterID       *uint64         `gorm:"index" json:"promoter_id"`
	Title            string          `gorm:"size:255;not null" json:"title"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Category         string          `gorm:"size:100;not null;index" json:"category"`
	Location         string          `gorm:"size:255;not null" json:"location"`
	Venue            string          `gorm:"size:255" json:"venue"`
	Latitude         *float64        `json:"latitude"`
	Longitude        *float64        `json:"longitude"`
	StartDate        datatypes.Date  `gorm:"not null;index" json:"start_date"`
	EndDate          datatypes.Date  `gorm:"not null;index" json:"end_date"`
	StartTime        *datatypes.Time `json:"start_time"`
	EndTime          *datatypes.Time `json:"end_time"`
	Image            *string         `gorm:"size:255" json:"image"`
	MaxAttendees     *int            `json:"max_attendees"`
	IsFeatured       bool            `gorm:"not null;index" json:"is_featured"`
	IsPublished      bool            `gorm:"not null;index" json:"is_published"`
	OrganizerName    string          `gorm:"size:255" json:"organizer_name"`
	OrganizerPhone   string          `gorm:"size:32" json:"organizer_phone"`
	OrganizerEmail   string          `gorm:"size:255" json:"organizer_email"`
	OrganizerWebsite string          `gorm:"size:255" json:"organizer_website"`
	Views            int64           `gorm:"not null;default:0" json:"views"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User     *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Promoter *User         `gorm:"foreignKey:PromoterID" json:"promoter,omitempty"`
	Tickets  []EventTicket `gorm:"foreignKey:EventID" json:"tickets,omitempty"`
}

// EndsAt is the instant the event is over: end date plus end time, or the end
// of the end date when no end time is set.
func (e *Event) EndsAt() time.Time {
	d := time.Time(e.EndDate)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if e.EndTime == nil {
		return day.Add(24*time.Hour - time.Nanosecond)
	}
	return day.Add(time.Duration(*e.EndTime))
}

// EventTicket is a ticket type. QuantitySold never exceeds QuantityAvailable;
// the purchase path enforces it with a conditional UPDATE.
type EventTicket struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID           uint64          `gorm:"not null;index" json:"event_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	QuantityAvailable int             `gorm:"not null" json:"quantity_available"`
	QuantitySold      int             `gorm:"not null;default:0" json:"quantity_sold"`
	SaleStartDate     *time.Time      `json:"sale_start_date"`
	SaleEndDate       *time.Time      `json:"sale_end_date"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

// Remaining is the number of tickets still for sale.
func (t *EventTicket) Remaining() int {
	return t.QuantityAvailable - t.QuantitySold
}

type TicketPurchase struct {
	ID             uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID       uint64            `gorm:"not null;index" json:"ticket_id"`
	UserID         uint64            `gorm:"not null;index" json:"user_id"`
	Quantity       int               `gorm:"not null" json:"quantity"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaymentMethod  string            `gorm:"size:32;not null" json:"payment_method"`
	PaymentDetails datatypes.JSONMap `json:"payment_details"`
	PaymentStatus  string            `gorm:"size:32;not null" json:"payment_status"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Ticket *EventTicket `gorm:"foreignKey:TicketID" json:"ticket,omitempty"`
}
