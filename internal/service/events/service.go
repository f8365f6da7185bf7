// Package events serves events, their ticket types and ticket purchases.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	PerPage       = 10
	FeaturedLimit = 5
	UpcomingLimit = 10

	eventNotFound = "Event not found"
	imagesDir     = "event_images"
)

type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	events  *repository.EventRepository
	tickets *repository.TicketRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		events:  repository.NewEventRepository(appCtx.DB),
		tickets: repository.NewTicketRepository(appCtx.DB),
	}
}

type Event struct {
	db.Event
	ImageURL *string    `json:"image_url"`
	Promoter *view.User `json:"promoter,omitempty"`
}

func (s *Service) eventView(e db.Event) *Event {
	promoter := view.NewUser(s.appCtx.Storage, e.Promoter)
	e.Promoter = nil
	e.User = nil
	return &Event{Event: e, ImageURL: storage.URLPtr(s.appCtx.Storage, e.Image), Promoter: promoter}
}

func (s *Service) eventViews(rows []db.Event) []*Event {
	out := make([]*Event, 0, len(rows))
	for _, e := range rows {
		out = append(out, s.eventView(e))
	}
	return out
}

// List pages through events by start date.
func (s *Service) List(ctx context.Context, f repository.EventFilter, page int) (pagination.Page[*Event], error) {
	rows, err := s.events.List(ctx, f, pagination.Params{Page: page, PerPage: PerPage})
	if err != nil {
		return pagination.Page[*Event]{}, svcErr.Map(err)
	}
	return pagination.Map(rows, s.eventView), nil
}

type TicketTypeInput struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Quantity    int              `json:"quantity" validate:"required,min=1"`
	Description string           `json:"description"`
}

// EventInput is pre-filled from the stored event on update. TicketTypes is
// only read on create.
type EventInput struct {
	Title            string            `json:"title" validate:"required,max=255"`
	Description      string            `json:"description" validate:"required"`
	Category         string            `json:"category" validate:"required,max=100"`
	Location         string            `json:"location" validate:"required,max=255"`
	Venue            string            `json:"venue" validate:"required,max=255"`
	Latitude         *float64          `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64          `json:"longitude" validate:"omitempty,longitude"`
	StartDate        string            `json:"start_date" validate:"required,date"`
	EndDate          string            `json:"end_date" validate:"required,date"`
	StartTime        string            `json:"start_time" validate:"required,hhmm"`
	EndTime          string            `json:"end_time" validate:"required,hhmm"`
	MaxAttendees     *int              `json:"max_attendees" validate:"omitempty,min=1"`
	IsFeatured       bool              `json:"is_featured"`
	IsPublished      *bool             `json:"is_published"`
	OrganizerName    string            `json:"organizer_name" validate:"required,max=255"`
	OrganizerPhone   string            `json:"organizer_phone" validate:"max=20"`
	OrganizerEmail   string            `json:"organizer_email" validate:"required,email,max=255"`
	OrganizerWebsite string            `json:"organizer_website" validate:"omitempty,url,max=255"`
	PromoterID       *uint64           `json:"promoter_id"`
	TicketTypes      []TicketTypeInput `json:"ticket_types" validate:"omitempty,dive"`
}

func (in *EventInput) Rules(errs validation.Errors) {
	if !errs.Has("start_date") && !errs.Has("end_date") && in.EndDate < in.StartDate {
		errs.Add("end_date", "The end date field must be a date after or equal to start date.")
	}
	for i, tt := range in.TicketTypes {
		if tt.Price != nil && tt.Price.IsNegative() {
			errs.Add(fmt.Sprintf("ticket_types.%d.price", i), fmt.Sprintf("The ticket_types.%d.price field must be at least 0.", i))
		}
	}
}

func clock(t datatypes.Time) string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func parseClock(s string) datatypes.Time {
	t, _ := time.Parse(validation.TimeLayout, s)
	return datatypes.NewTime(t.Hour(), t.Minute(), 0, 0)
}

func inputFrom(e *db.Event) EventInput {
	published := e.IsPublished
	in := EventInput{
		Title:            e.Title,
		Description:      e.Description,
		Category:         e.Category,
		Location:         e.Location,
		Venue:            e.Venue,
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		StartDate:        time.Time(e.StartDate).Format(validation.DateLayout),
		EndDate:          time.Time(e.EndDate).Format(validation.DateLayout),
		MaxAttendees:     e.MaxAttendees,
		IsFeatured:       e.IsFeatured,
		IsPublished:      &published,
		OrganizerName:    e.OrganizerName,
		OrganizerPhone:   e.OrganizerPhone,
		OrganizerEmail:   e.OrganizerEmail,
		OrganizerWebsite: e.OrganizerWebsite,
		PromoterID:       e.PromoterID,
	}
	if e.StartTime != nil {
		in.StartTime = clock(*e.StartTime)
	}
	if e.EndTime != nil {
		in.EndTime = clock(*e.EndTime)
	}
	return in
}

func apply(e *db.Event, in EventInput) {
	start, end := parseClock(in.StartTime), parseClock(in.EndTime)
	e.Title = in.Title
	e.Description = in.Description
	e.Category = in.Category
	e.Location = in.Location
	e.Venue = in.Venue
	e.Latitude = in.Latitude
	e.Longitude = in.Longitude
	e.StartDate = datatypes.Date(validation.ParseDate(in.StartDate))
	e.EndDate = datatypes.Date(validation.ParseDate(in.EndDate))
	e.StartTime = &start
	e.EndTime = &end
	e.MaxAttendees = in.MaxAttendees
	e.IsFeatured = in.IsFeatured
	e.IsPublished = in.IsPublished == nil || *in.IsPublished
	e.OrganizerName = in.OrganizerName
	e.OrganizerPhone = in.OrganizerPhone
	e.OrganizerEmail = in.OrganizerEmail
	e.OrganizerWebsite = in.OrganizerWebsite
	e.PromoterID = in.PromoterID
}

// check runs tag and cross-field rules, the promoter lookup and the image
// rule into one error set.
func (s *Service) check(ctx context.Context, in *EventInput, image *storage.File) error {
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(in, errs); err != nil {
		return svcErr.Internal(err)
	}
	if in.PromoterID != nil {
		missing, err := s.users.MissingIDs(ctx, []uint64{*in.PromoterID})
		if err != nil {
			return svcErr.Map(err)
		}
		if len(missing) > 0 {
			errs.Add("promoter_id", "The selected promoter id is invalid.")
		}
	}
	if image != nil {
		storage.ImageRule.Check(errs, "image", *image)
	}
	return errs.Err()
}

// Create stores an event owned by the caller together with any inline ticket
// types, in one transaction.
func (s *Service) Create(ctx context.Context, id auth.Identity, in EventInput, image *storage.File) (*Event, error) {
	if err := s.check(ctx, &in, image); err != nil {
		return nil, err
	}

	e := db.Event{UserID: id.UserID}
	apply(&e, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, imagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		e.Image = &path
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.events.WithTx(tx).Create(ctx, &e); err != nil {
			return err
		}
		tickets := s.tickets.WithTx(tx)
		for _, tt := range in.TicketTypes {
			t := db.EventTicket{
				EventID:           e.ID,
				Name:              tt.Name,
				Description:       tt.Description,
				Price:             tt.Price.Round(2),
				QuantityAvailable: tt.Quantity,
				IsActive:          true,
			}
			if err := tickets.Create(ctx, &t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if e.Image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *e.Image)
		}
		s.appCtx.Logger.Error("create event failed", "user_id", id.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	return s.load(ctx, e.ID)
}

// Show returns an event with its ticket types and promoter, and counts the
// view.
func (s *Service) Show(ctx context.Context, eventID uint64) (*Event, error) {
	if err := s.events.IncrementViews(ctx, eventID); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.load(ctx, eventID)
}

// Update applies a partial update. Creators and admins only; a new image
// replaces the old blob.
func (s *Service) Update(ctx context.Context, id auth.Identity, eventID uint64, patch validation.Patch, image *storage.File) (*Event, error) {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !id.CanModify(e.UserID) {
		return nil, svcErr.Forbidden("You are not authorized to update this event")
	}

	in := inputFrom(e)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	in.TicketTypes = nil
	if err := s.check(ctx, &in, image); err != nil {
		return nil, err
	}

	old := e.Image
	apply(e, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, imagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		e.Image = &path
	}
	if err := s.events.Save(ctx, e); err != nil {
		if image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *e.Image)
		}
		return nil, svcErr.Map(err)
	}
	if image != nil && old != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *old)
	}
	return s.load(ctx, e.ID)
}

// Delete removes an event with its ticket types and purchases. Creators and
// admins only.
func (s *Service) Delete(ctx context.Context, id auth.Identity, eventID uint64) error {
	e, err := s.find(ctx, eventID)
	if err != nil {
		return err
	}
	if !id.CanModify(e.UserID) {
		return svcErr.Forbidden("You are not authorized to delete this event")
	}
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.events.WithTx(tx).DeleteCascade(ctx, e.ID)
	})
	if err != nil {
		s.appCtx.Logger.Error("delete event failed", "event_id", e.ID, "err", err)
		return svcErr.Map(err)
	}
	if e.Image != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *e.Image)
	}
	return nil
}

// Featured returns up to FeaturedLimit published featured events that have
// not ended.
func (s *Service) Featured(ctx context.Context) ([]*Event, error) {
	rows, err := s.events.Featured(ctx, s.appCtx.Now(), FeaturedLimit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.eventViews(rows), nil
}

// Upcoming returns up to UpcomingLimit published events starting today or
// later.
func (s *Service) Upcoming(ctx context.Context) ([]*Event, error) {
	rows, err := s.events.Upcoming(ctx, s.appCtx.Now(), UpcomingLimit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.eventViews(rows), nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	out, err := s.events.Categories(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, eventID uint64) (*db.Event, error) {
	e, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, eventNotFound))
	}
	return e, nil
}

func (s *Service) load(ctx context.Context, eventID uint64) (*Event, error) {
	e, err := s.events.FindDetailed(ctx, eventID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, eventNotFound))
	}
	return s.eventView(*e), nil
}
