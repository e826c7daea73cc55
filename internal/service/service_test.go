package service

import (
	"context"
	"testing"
	"time"

	"shareit/internal/events"
	"shareit/internal/models"
	"shareit/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	bus      *events.EventBus
	bookings *BookingService
	items    *ItemService
	comments *CommentService
	requests *RequestService
	users    *UserService

	owner    *models.User
	booker   *models.User
	stranger *models.User
	item     *models.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	store := repository.NewMemoryStore()
	clock := &fakeClock{now: testNow}
	bus := events.NewEventBus()

	f := &fixture{
		store:    store,
		clock:    clock,
		bus:      bus,
		bookings: NewBookingService(store, store, store, bus, clock, &logger),
		items:    NewItemService(store, clock, &logger),
		requests: NewRequestService(store, store, store, clock, &logger),
		users:    NewUserService(store, &logger),
	}
	f.comments = NewCommentService(store, store, store, f.bookings, clock, &logger)

	f.owner = f.user(t, "owner")
	f.booker = f.user(t, "booker")
	f.stranger = f.user(t, "stranger")

	f.item = &models.Item{Name: "Drill", Description: "Cordless drill", Available: true, OwnerID: f.owner.ID}
	require.NoError(t, store.CreateItem(ctx, f.item))
	return f
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) book(t *testing.T, start, end time.Time) *models.BookingResponse {
	t.Helper()
	resp, err := f.bookings.CreateBooking(context.Background(), f.booker.ID, models.CreateBookingRequest{
		ItemID: f.item.ID,
		Start:  start,
		End:    end,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) decide(t *testing.T, bookingID int64, approved bool) {
	t.Helper()
	_, err := f.bookings.ApproveBooking(context.Background(), f.owner.ID, bookingID, approved)
	require.NoError(t, err)
}

func ids(bookings []models.BookingResponse) []int64 {
	out := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}
