package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/events"
	"github.com/oggyb/socialtinder/internal/storage"
	apptest "github.com/oggyb/socialtinder/internal/testutil"
	"github.com/oggyb/socialtinder/internal/validation"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	app   *app.AppContext
	clock *apptest.Clock
	store *storage.MemoryStore
	svc   *events.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	appCtx, clock, store := apptest.NewApp(t)
	return fixture{app: appCtx, clock: clock, store: store, svc: events.NewService(appCtx)}
}

func (f fixture) user(t *testing.T) auth.Identity {
	t.Helper()
	return auth.Identity{UserID: apptest.CreateUser(t, f.app.DB, nil).ID}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func patchOf[T any](fn func(in *T)) validation.Patch {
	return func(dst any) error {
		fn(dst.(*T))
		return nil
	}
}

func validEvent() events.EventInput {
	return events.EventInput{
		Title:          "Jazz Night",
		Description:    "Live trio",
		Category:       "music",
		Location:       "Amsterdam",
		Venue:          "Bimhuis",
		StartDate:      "2026-05-10",
		EndDate:        "2026-05-10",
		StartTime:      "20:00",
		EndTime:        "23:30",
		OrganizerName:  "Jazz Club",
		OrganizerEmail: "info@jazz.example",
	}
}

func (f fixture) event(t *testing.T, owner auth.Identity, mutate func(in *events.EventInput)) *events.Event {
	t.Helper()
	in := validEvent()
	if mutate != nil {
		mutate(&in)
	}
	e, err := f.svc.Create(context.Background(), owner, in, nil)
	require.NoError(t, err)
	return e
}

func (f fixture) ticket(t *testing.T, owner auth.Identity, eventID uint64, qty int) *db.EventTicket {
	t.Helper()
	tk, err := f.svc.CreateTicket(context.Background(), owner, eventID, events.TicketInput{
		Name:              "General",
		Price:             dec("25.00"),
		QuantityAvailable: qty,
	})
	require.NoError(t, err)
	return tk
}

func buy(qty int) events.PurchaseInput {
	return events.PurchaseInput{
		Quantity:       qty,
		PaymentMethod:  db.PaymentCreditCard,
		PaymentDetails: map[string]any{"last4": "4242"},
	}
}

func TestCreateWithInlineTicketTypes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := f.user(t)
	promoter := f.user(t)

	image := &storage.File{Name: "poster.png", ContentType: "image/png", Size: int64(len(pngBytes)), Data: pngBytes}
	in := validEvent()
	in.PromoterID = &promoter.UserID
	in.TicketTypes = []events.TicketTypeInput{
		{Name: "Early bird", Price: dec("15"), Quantity: 50},
		{Name: "Door", Price: dec("22.50"), Quantity: 100},
	}
	e, err := f.svc.Create(ctx, owner, in, image)
	require.NoError(t, err)

	assert.Equal(t, owner.UserID, e.UserID)
	assert.True(t, e.IsPublished, "published unless told otherwise")
	require.Len(t, e.Tickets, 2)
	assert.Equal(t, "Early bird", e.Tickets[0].Name)
	assert.True(t, e.Tickets[1].Price.Equal(decimal.RequireFromString("22.5")))
	require.NotNil(t, e.Promoter)
	assert.Equal(t, promoter.UserID, e.Promoter.ID)
	require.NotNil(t, e.Image)
	assert.True(t, f.store.Has(*e.Image))
	assert.Equal(t, "http://localhost/storage/"+*e.Image, *e.ImageURL)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := f.user(t)

	in := validEvent()
	in.EndDate = "2026-05-09"
	in.StartTime = "8pm"
	missing := uint64(9999)
	in.PromoterID = &missing
	in.TicketTypes = []events.TicketTypeInput{{Name: "", Price: dec("-1"), Quantity: 0}}

	_, err := f.svc.Create(ctx, owner, in, nil)
	require.True(t, svcErr.Is(err, svcErr.KindValidation))
	fields := svcErr.Map(err).Fields
	for _, k := range []string{"end_date", "start_time", "promoter_id", "ticket_types.0.name", "ticket_types.0.price", "ticket_types.0.quantity"} {
		assert.Contains(t, fields, k)
	}
	assert.Equal(t, []string{"The selected promoter id is invalid."}, fields["promoter_id"])

	var count int64
	require.NoError(t, f.app.DB.Model(&db.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestShowCountsViews(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	e := f.event(t, f.user(t), nil)

	first, err := f.svc.Show(ctx, e.ID)
	require.NoError(t, err)
	second, err := f.svc.Show(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Views)
	assert.Equal(t, int64(2), second.Views)

	_, err = f.svc.Show(ctx, 9999)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	assert.Equal(t, "Event not found", svcErr.Map(err).Message)
}

func TestUpdateAndDeleteAuthorization(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner, stranger := f.user(t), f.user(t)
	admin := auth.Identity{UserID: f.user(t).UserID, IsAdmin: true}
	e := f.event(t, owner, func(in *events.EventInput) {
		in.TicketTypes = []events.TicketTypeInput{{Name: "GA", Price: dec("10"), Quantity: 10}}
	})

	rename := patchOf(func(in *events.EventInput) { in.Title = "Late Jazz" })
	_, err := f.svc.Update(ctx, stranger, e.ID, rename, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))
	assert.Equal(t, "You are not authorized to update this event", svcErr.Map(err).Message)

	got, err := f.svc.Update(ctx, admin, e.ID, rename, nil)
	require.NoError(t, err)
	assert.Equal(t, "Late Jazz", got.Title)
	assert.Equal(t, "Bimhuis", got.Venue, "untouched fields survive")
	require.NotNil(t, got.StartTime)

	_, err = f.svc.Update(ctx, owner, e.ID, patchOf(func(in *events.EventInput) { in.EndDate = "2026-05-01" }), nil)
	assert.Contains(t, svcErr.Map(err).Fields, "end_date")

	err = f.svc.Delete(ctx, stranger, e.ID)
	assert.Equal(t, "You are not authorized to delete this event", svcErr.Map(err).Message)

	_, err = f.svc.Purchase(ctx, stranger, e.ID, e.Tickets[0].ID, buy(1))
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, owner, e.ID))

	for _, model := range []any{&db.Event{}, &db.EventTicket{}, &db.TicketPurchase{}} {
		var n int64
		require.NoError(t, f.app.DB.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left behind", model)
	}
}

func TestFeaturedUpcomingAndCategories(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := f.user(t)

	f.event(t, owner, func(in *events.EventInput) { in.IsFeatured = true; in.Category = "music" })
	f.event(t, owner, func(in *events.EventInput) {
		in.StartDate, in.EndDate = "2026-04-01", "2026-04-02"
		in.IsFeatured = true
		in.Category = "art"
	})
	hidden := false
	f.event(t, owner, func(in *events.EventInput) { in.IsPublished = &hidden; in.Category = "food" })

	featured, err := f.svc.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1, "past and unpublished events are not featured")
	assert.Equal(t, "music", featured[0].Category)

	upcoming, err := f.svc.Upcoming(ctx)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	cats, err := f.svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"art", "food", "music"}, cats)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	page, err := f.svc.List(ctx, repository.EventFilter{DateFrom: &from}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestTicketTypeCRUD(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner, stranger := f.user(t), f.user(t)
	e := f.event(t, owner, nil)

	_, err := f.svc.CreateTicket(ctx, stranger, e.ID, events.TicketInput{Name: "VIP", Price: dec("50"), QuantityAvailable: 5})
	assert.Equal(t, "You are not authorized to add tickets to this event", svcErr.Map(err).Message)

	_, err = f.svc.CreateTicket(ctx, owner, e.ID, events.TicketInput{
		Name:              "VIP",
		Price:             dec("-5"),
		QuantityAvailable: 5,
		SaleStartDate:     ptr("2026-05-05"),
		SaleEndDate:       ptr("2026-05-02"),
	})
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "sale_end_date")

	tk := f.ticket(t, owner, e.ID, 5)
	assert.True(t, tk.IsActive)

	list, err := f.svc.Tickets(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", list.Event.Title)
	assert.Len(t, list.Tickets, 1)

	_, err = f.svc.Purchase(ctx, stranger, e.ID, tk.ID, buy(3))
	require.NoError(t, err)

	_, err = f.svc.UpdateTicket(ctx, owner, e.ID, tk.ID, patchOf(func(in *events.TicketInput) { in.QuantityAvailable = 2 }))
	assert.Equal(t, []string{"The quantity available field must be at least 3."}, svcErr.Map(err).Fields["quantity_available"])

	updated, err := f.svc.UpdateTicket(ctx, owner, e.ID, tk.ID, patchOf(func(in *events.TicketInput) { in.QuantityAvailable = 3 }))
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Remaining())

	err = f.svc.DeleteTicket(ctx, owner, e.ID, tk.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindDomainRule))
	assert.Equal(t, "Cannot delete ticket type because tickets have already been sold", svcErr.Map(err).Message)

	unsold := f.ticket(t, owner, e.ID, 5)
	err = f.svc.DeleteTicket(ctx, stranger, e.ID, unsold.ID)
	assert.Equal(t, "You are not authorized to delete tickets for this event", svcErr.Map(err).Message)
	require.NoError(t, f.svc.DeleteTicket(ctx, owner, e.ID, unsold.ID))

	_, err = f.svc.ShowTicket(ctx, e.ID, unsold.ID)
	assert.Equal(t, "Ticket not found", svcErr.Map(err).Message)
}

func ptr(s string) *string { return &s }

func TestPurchaseRespectsRemainingSeats(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner, buyer := f.user(t), f.user(t)
	e := f.event(t, owner, nil)
	tk := f.ticket(t, owner, e.ID, 5)

	_, err := f.svc.Purchase(ctx, buyer, e.ID, tk.ID, buy(3))
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, buyer, e.ID, tk.ID, buy(3))
	assert.True(t, svcErr.Is(err, svcErr.KindDomainRule))
	assert.Equal(t, "Not enough tickets available. Only 2 tickets left.", svcErr.Map(err).Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.app.Metrics.TicketsRejected.WithLabelValues("insufficient")))

	receipt, err := f.svc.Purchase(ctx, buyer, e.ID, tk.ID, buy(2))
	require.NoError(t, err)
	assert.Equal(t, "General", receipt.TicketType)
	assert.True(t, receipt.TotalAmount.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, db.PaymentStatusCompleted, receipt.Status)
	assert.Equal(t, "Bimhuis", receipt.Event.Venue)

	got, err := f.svc.ShowTicket(ctx, e.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuantitySold)
	assert.Equal(t, 5.0, testutil.ToFloat64(f.app.Metrics.TicketsSold))

	mine, err := f.svc.MyTickets(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, 2, mine[0].Quantity, "newest first")
	assert.Equal(t, e.ID, mine[0].Event.ID)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := f.user(t)
	e := f.event(t, owner, nil)
	tk := f.ticket(t, owner, e.ID, 10)

	buyers := make([]auth.Identity, 8)
	for i := range buyers {
		buyers[i] = f.user(t)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for _, b := range buyers {
		wg.Add(1)
		go func(b auth.Identity) {
			defer wg.Done()
			if _, err := f.svc.Purchase(ctx, b, e.ID, tk.ID, buy(3)); err == nil {
				mu.Lock()
				sold += 3
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	got, err := f.svc.ShowTicket(ctx, e.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, sold)
	assert.Equal(t, sold, got.QuantitySold)
	assert.LessOrEqual(t, got.QuantitySold, got.QuantityAvailable)
}

func TestPurchaseChecksRunInOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner, buyer := f.user(t), f.user(t)
	e := f.event(t, owner, nil)

	later, err := f.svc.CreateTicket(ctx, owner, e.ID, events.TicketInput{
		Name: "Later", Price: dec("5"), QuantityAvailable: 5, SaleStartDate: ptr("2026-05-03"),
	})
	require.NoError(t, err)
	closed, err := f.svc.CreateTicket(ctx, owner, e.ID, events.TicketInput{
		Name: "Closed", Price: dec("5"), QuantityAvailable: 5, SaleEndDate: ptr("2026-04-30"),
	})
	require.NoError(t, err)
	off := false
	inactive, err := f.svc.CreateTicket(ctx, owner, e.ID, events.TicketInput{
		Name: "Off", Price: dec("5"), QuantityAvailable: 5, IsActive: &off,
	})
	require.NoError(t, err)
	open := f.ticket(t, owner, e.ID, 5)

	cases := []struct {
		ticket uint64
		in     events.PurchaseInput
		msg    string
	}{
		{later.ID, buy(1), "Ticket sales have not started for this ticket type"},
		{closed.ID, buy(1), "Ticket sales have ended for this ticket type"},
		{inactive.ID, events.PurchaseInput{}, "This ticket type is not currently available"},
	}
	for _, tc := range cases {
		_, err := f.svc.Purchase(ctx, buyer, e.ID, tc.ticket, tc.in)
		assert.True(t, svcErr.Is(err, svcErr.KindDomainRule), tc.msg)
		assert.Equal(t, tc.msg, svcErr.Map(err).Message)
	}

	_, err = f.svc.Purchase(ctx, buyer, e.ID, open.ID, events.PurchaseInput{Quantity: 1, PaymentMethod: "cash"})
	require.True(t, svcErr.Is(err, svcErr.KindValidation))
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "payment_method")
	assert.Contains(t, fields, "payment_details")

	_, err = f.svc.Purchase(ctx, buyer, 9999, open.ID, buy(1))
	assert.Equal(t, "Ticket not found", svcErr.Map(err).Message)

	f.clock.Set(time.Date(2026, 5, 10, 23, 31, 0, 0, time.UTC))
	_, err = f.svc.Purchase(ctx, buyer, e.ID, open.ID, buy(1))
	assert.Equal(t, "This event has already ended", svcErr.Map(err).Message)
}
