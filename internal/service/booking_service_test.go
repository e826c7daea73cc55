package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) TransitionBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

func (m *mockBookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetCompletedBookings(ctx context.Context, itemID, bookerID int64, now time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, itemID, bookerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	args := m.Called(ctx, itemID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	args := m.Called(ctx, itemID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var published []*events.Event
	f.bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		published = append(published, e)
		return nil
	})

	start := testNow.Add(24 * time.Hour)
	resp, err := f.bookings.CreateBooking(ctx, f.booker.ID, models.CreateBookingRequest{
		ItemID: f.item.ID,
		Start:  start,
		End:    start.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.NotZero(t, resp.ID)
	assert.Equal(t, models.StatusWaiting, resp.Status)
	assert.Equal(t, models.BookingUserRef{ID: f.booker.ID, Name: "booker"}, resp.Booker)
	assert.Equal(t, models.BookingItemRef{ID: f.item.ID, Name: "Drill"}, resp.Item)

	require.Len(t, published, 1)
	payload, err := events.DecodeBooking(published[0])
	require.NoError(t, err)
	assert.Equal(t, resp.ID, payload.BookingID)
	assert.Equal(t, f.owner.ID, payload.OwnerID)
	assert.Equal(t, "WAITING", payload.Status)
	assert.True(t, payload.OccurredAt.Equal(testNow))
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unavailable := &models.Item{Name: "Saw", Description: "Broken saw", Available: false, OwnerID: f.owner.ID}
	require.NoError(t, f.store.CreateItem(ctx, unavailable))

	start := testNow.Add(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name     string
		bookerID int64
		req      models.CreateBookingRequest
		want     error
	}{
		{
			name:     "missing fields",
			bookerID: f.booker.ID,
			req:      models.CreateBookingRequest{ItemID: f.item.ID},
			want:     domain.ErrValidation,
		},
		{
			name:     "unknown booker",
			bookerID: 999,
			req:      models.CreateBookingRequest{ItemID: f.item.ID, Start: end, End: start},
			want:     domain.ErrNotFound,
		},
		{
			name:     "unknown item",
			bookerID: f.booker.ID,
			req:      models.CreateBookingRequest{ItemID: 999, Start: end, End: start},
			want:     domain.ErrNotFound,
		},
		{
			name:     "end before start",
			bookerID: f.booker.ID,
			req:      models.CreateBookingRequest{ItemID: unavailable.ID, Start: end, End: start},
			want:     domain.ErrValidation,
		},
		{
			name:     "unavailable item",
			bookerID: f.booker.ID,
			req:      models.CreateBookingRequest{ItemID: unavailable.ID, Start: start, End: end},
			want:     domain.ErrUnavailableItem,
		},
		{
			name:     "unavailable item in the past",
			bookerID: f.booker.ID,
			req:      models.CreateBookingRequest{ItemID: unavailable.ID, Start: testNow.Add(-48 * time.Hour), End: testNow.Add(-24 * time.Hour)},
			want:     domain.ErrUnavailableItem,
		},
		{
			name:     "owner books own unavailable item",
			bookerID: f.owner.ID,
			req:      models.CreateBookingRequest{ItemID: unavailable.ID, Start: start, End: end},
			want:     domain.ErrUnavailableItem,
		},
		{
			name:     "self booking",
			bookerID: f.owner.ID,
			req:      models.CreateBookingRequest{ItemID: f.item.ID, Start: start, End: end},
			want:     domain.ErrSelfBooking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bookings.CreateBooking(ctx, tt.bookerID, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateBookingZeroLengthAccepted(t *testing.T) {
	f := newFixture(t)
	at := testNow.Add(time.Hour)

	resp := f.book(t, at, at)
	assert.Equal(t, models.StatusWaiting, resp.Status)
	assert.True(t, resp.Start.Equal(resp.End))
}

func TestCreateBookingStorageError(t *testing.T) {
	f := newFixture(t)
	repo := new(mockBookingRepo)
	logger := zerolog.Nop()
	svc := NewBookingService(f.store, f.store, repo, nil, f.clock, &logger)

	boom := errors.New("disk full")
	repo.On("CreateBooking", mock.Anything, mock.AnythingOfType("*models.Booking")).Return(boom).Once()

	_, err := svc.CreateBooking(context.Background(), f.booker.ID, models.CreateBookingRequest{
		ItemID: f.item.ID, Start: testNow, End: testNow.Add(time.Hour),
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, domain.IsClientError(err))
	repo.AssertExpectations(t)
}

func TestApproveBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	var decided []string
	for _, et := range []string{events.EventBookingApproved, events.EventBookingRejected} {
		f.bus.Subscribe(et, func(e *events.Event) error {
			decided = append(decided, e.Type)
			return nil
		})
	}

	t.Run("approve", func(t *testing.T) {
		b := f.book(t, start, start.Add(time.Hour))
		resp, err := f.bookings.ApproveBooking(ctx, f.owner.ID, b.ID, true)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, resp.Status)

		stored, err := f.store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, stored.Status)
	})

	t.Run("reject", func(t *testing.T) {
		b := f.book(t, start, start.Add(time.Hour))
		resp, err := f.bookings.ApproveBooking(ctx, f.owner.ID, b.ID, false)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, resp.Status)
	})

	assert.Equal(t, []string{events.EventBookingApproved, events.EventBookingRejected}, decided)

	t.Run("only owner decides", func(t *testing.T) {
		b := f.book(t, start, start.Add(time.Hour))
		for _, userID := range []int64{f.booker.ID, f.stranger.ID} {
			_, err := f.bookings.ApproveBooking(ctx, userID, b.ID, true)
			assert.ErrorIs(t, err, domain.ErrValidation)
		}
	})

	t.Run("missing booking", func(t *testing.T) {
		_, err := f.bookings.ApproveBooking(ctx, f.owner.ID, 999, true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestApproveDecidedBookingFails(t *testing.T) {
	statuses := []models.BookingStatus{models.StatusApproved, models.StatusRejected, models.StatusCanceled}
	ctx := context.Background()

	for _, status := range statuses {
		for _, approved := range []bool{true, false} {
			t.Run(string(status), func(t *testing.T) {
				f := newFixture(t)
				b := f.book(t, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
				require.NoError(t, f.store.TransitionBookingStatus(ctx, b.ID, models.StatusWaiting, status))

				_, err := f.bookings.ApproveBooking(ctx, f.owner.ID, b.ID, approved)
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Contains(t, err.Error(), "booking is not in waiting status")
			})
		}
	}
}

func TestApproveLostRaceIsValidation(t *testing.T) {
	repo := new(mockBookingRepo)
	logger := zerolog.Nop()
	svc := NewBookingService(nil, nil, repo, nil, &fakeClock{now: testNow}, &logger)
	ctx := context.Background()

	booking := &models.Booking{ID: 7, Status: models.StatusWaiting, ItemOwnerID: 1, BookerID: 2}
	repo.On("GetBooking", ctx, int64(7)).Return(booking, nil).Once()
	repo.On("TransitionBookingStatus", ctx, int64(7), models.StatusWaiting, models.StatusApproved).
		Return(domain.ErrConcurrentModification).Once()

	_, err := svc.ApproveBooking(ctx, 1, 7, true)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
	repo.AssertExpectations(t)
}

func TestConcurrentApprovalsSingleWinner(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, testNow.Add(time.Hour), testNow.Add(2*time.Hour))

	var wins, validationErrors int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(approved bool) {
			defer wg.Done()
			_, err := f.bookings.ApproveBooking(context.Background(), f.owner.ID, b.ID, approved)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, domain.ErrValidation):
				atomic.AddInt32(&validationErrors, 1)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(9), validationErrors)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	bus := new(mockEventBus)
	logger := zerolog.Nop()
	svc := NewBookingService(f.store, f.store, f.store, bus, f.clock, &logger)

	bus.On("PublishJSON", events.EventBookingCreated, mock.AnythingOfType("events.BookingEventPayload")).
		Return(errors.New("bus down")).Once()

	resp, err := svc.CreateBooking(context.Background(), f.booker.ID, models.CreateBookingRequest{
		ItemID: f.item.ID, Start: testNow, End: testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, resp.Status)
	bus.AssertExpectations(t)
}

func TestDoubleBookingIsNotPrevented(t *testing.T) {
	f := newFixture(t)
	other := f.user(t, "other")
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	first := f.book(t, start, start.Add(48*time.Hour))
	second, err := f.bookings.CreateBooking(ctx, other.ID, models.CreateBookingRequest{
		ItemID: f.item.ID, Start: start.Add(time.Hour), End: start.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	f.decide(t, first.ID, true)
	resp, err := f.bookings.ApproveBooking(ctx, f.owner.ID, second.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, resp.Status)
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, testNow.Add(time.Hour), testNow.Add(2*time.Hour))

	for _, userID := range []int64{f.booker.ID, f.owner.ID} {
		resp, err := f.bookings.GetBooking(ctx, userID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, resp.ID)
	}

	_, hiddenErr := f.bookings.GetBooking(ctx, f.stranger.ID, b.ID)
	assert.ErrorIs(t, hiddenErr, domain.ErrNotFound)

	_, missingErr := f.bookings.GetBooking(ctx, f.booker.ID, 999)
	assert.ErrorIs(t, missingErr, domain.ErrNotFound)
}

// seedStates creates one booking per state category and returns their ids.
func seedStates(t *testing.T, f *fixture) map[string]int64 {
	t.Helper()
	day := 24 * time.Hour

	past := f.book(t, testNow.Add(-3*day), testNow.Add(-2*day))
	f.decide(t, past.ID, true)
	current := f.book(t, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	f.decide(t, current.ID, true)
	future := f.book(t, testNow.Add(day), testNow.Add(2*day))
	f.decide(t, future.ID, true)
	waiting := f.book(t, testNow.Add(3*day), testNow.Add(4*day))
	rejected := f.book(t, testNow.Add(-10*day), testNow.Add(-9*day))
	f.decide(t, rejected.ID, false)

	return map[string]int64{
		"past":     past.ID,
		"current":  current.ID,
		"future":   future.ID,
		"waiting":  waiting.ID,
		"rejected": rejected.ID,
	}
}

func TestListBookingsByState(t *testing.T) {
	f := newFixture(t)
	id := seedStates(t, f)
	ctx := context.Background()

	expected := map[string][]int64{
		"ALL":      {id["waiting"], id["future"], id["current"], id["past"], id["rejected"]},
		"CURRENT":  {id["current"]},
		"PAST":     {id["past"], id["rejected"]},
		"FUTURE":   {id["waiting"], id["future"]},
		"WAITING":  {id["waiting"]},
		"REJECTED": {id["rejected"]},
		"":         {id["waiting"], id["future"], id["current"], id["past"], id["rejected"]},
		"current":  {id["current"]},
	}

	for _, role := range []models.BookingRole{models.RoleBooker, models.RoleOwner} {
		subject := f.booker.ID
		if role == models.RoleOwner {
			subject = f.owner.ID
		}
		for state, want := range expected {
			t.Run(role.String()+"/"+state, func(t *testing.T) {
				got, err := f.bookings.ListBookings(ctx, role, subject, state, 0, 10)
				require.NoError(t, err)
				assert.Equal(t, want, ids(got))
			})
		}
	}

	t.Run("stranger sees nothing", func(t *testing.T) {
		got, err := f.bookings.ListBookings(ctx, models.RoleOwner, f.stranger.ID, "ALL", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListBookingsPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var all []int64
	for i := 0; i < 5; i++ {
		start := testNow.Add(time.Duration(i+1) * time.Hour)
		b := f.book(t, start, start.Add(30*time.Minute))
		all = append([]int64{b.ID}, all...)
	}

	var seen []int64
	for _, from := range []int{0, 2, 4} {
		page, err := f.bookings.ListBookings(ctx, models.RoleBooker, f.booker.ID, "ALL", from, 2)
		require.NoError(t, err)
		seen = append(seen, ids(page)...)
	}
	assert.Equal(t, all, seen)

	snapped, err := f.bookings.ListBookings(ctx, models.RoleBooker, f.booker.ID, "ALL", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, all[2:4], ids(snapped))
}

func TestListBookingsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.bookings.ListBookings(ctx, models.RoleBooker, f.booker.ID, "BOGUS", 0, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, models.ErrUnknownState)

	_, err = f.bookings.ListBookings(ctx, models.RoleBooker, f.booker.ID, "ALL", -1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.bookings.ListBookings(ctx, models.RoleOwner, f.owner.ID, "ALL", 0, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.bookings.ListBookings(ctx, models.RoleOwner, 999, "ALL", 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the state is checked before the user exists
	_, err = f.bookings.ListBookings(ctx, models.RoleOwner, 999, "BOGUS", 0, 10)
	assert.ErrorIs(t, err, models.ErrUnknownState)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 24 * time.Hour

	b := f.book(t, testNow.Add(day), testNow.Add(2*day))
	require.NotZero(t, b.ID)
	require.Equal(t, models.StatusWaiting, b.Status)

	approved, err := f.bookings.ApproveBooking(ctx, f.owner.ID, b.ID, true)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)

	_, err = f.bookings.ApproveBooking(ctx, f.owner.ID, b.ID, false)
	require.ErrorIs(t, err, domain.ErrValidation)

	ok, err := f.bookings.HasCompletedBooking(ctx, f.item.ID, f.booker.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.comments.AddComment(ctx, f.booker.ID, f.item.ID, "great drill")
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.clock.now = testNow.Add(2*day + time.Minute)

	ok, err = f.bookings.HasCompletedBooking(ctx, f.item.ID, f.booker.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	comment, err := f.comments.AddComment(ctx, f.booker.ID, f.item.ID, "great drill")
	require.NoError(t, err)
	assert.Equal(t, "booker", comment.AuthorName)
}

func TestHasCompletedBookingIgnoresRejected(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour))
	f.decide(t, b.ID, false)

	ok, err := f.bookings.HasCompletedBooking(context.Background(), f.item.ID, f.booker.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
