package database

import (
	"context"
	"testing"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func ids(bookings []*models.Booking) []int64 {
	out := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)

	b := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(24*time.Hour), testNow.Add(48*time.Hour), models.StatusWaiting)
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.True(t, got.Start.Equal(b.Start))
	assert.True(t, got.End.Equal(b.End))
	assert.Equal(t, "Drill", got.ItemName)
	assert.Equal(t, f.owner.ID, got.ItemOwnerID)
	assert.Equal(t, "Booker", got.BookerName)

	_, err = db.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = db.CreateBooking(ctx, &models.Booking{Start: testNow, End: testNow, ItemID: 999, BookerID: f.booker.ID, Status: models.StatusWaiting})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)

	b := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(time.Hour), testNow.Add(2*time.Hour), models.StatusWaiting)

	require.NoError(t, db.TransitionBookingStatus(ctx, b.ID, models.StatusWaiting, models.StatusApproved))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, int64(2), got.Version)

	err = db.TransitionBookingStatus(ctx, b.ID, models.StatusWaiting, models.StatusRejected)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	err = db.TransitionBookingStatus(ctx, 999, models.StatusWaiting, models.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestListBookings_States(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)
	day := 24 * time.Hour

	past := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(-3*day), testNow.Add(-2*day), models.StatusApproved)
	current := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(-day), testNow.Add(day), models.StatusApproved)
	future := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(2*day), testNow.Add(3*day), models.StatusApproved)
	waiting := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(4*day), testNow.Add(5*day), models.StatusWaiting)
	rejected := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(6*day), testNow.Add(7*day), models.StatusRejected)

	tests := []struct {
		state models.BookingState
		want  []int64
	}{
		{models.StateAll, []int64{rejected.ID, waiting.ID, future.ID, current.ID, past.ID}},
		{models.StateCurrent, []int64{current.ID}},
		{models.StatePast, []int64{past.ID}},
		{models.StateFuture, []int64{rejected.ID, waiting.ID, future.ID}},
		{models.StateWaiting, []int64{waiting.ID}},
		{models.StateRejected, []int64{rejected.ID}},
	}

	for _, role := range []models.BookingRole{models.RoleBooker, models.RoleOwner} {
		userID := f.booker.ID
		if role == models.RoleOwner {
			userID = f.owner.ID
		}
		for _, tt := range tests {
			t.Run(role.String()+"/"+string(tt.state), func(t *testing.T) {
				got, err := db.ListBookings(ctx, models.BookingFilter{
					Role: role, UserID: userID, State: tt.state, Now: testNow, Limit: 20,
				})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	}

	t.Run("OtherSubjectSeesNothing", func(t *testing.T) {
		got, err := db.ListBookings(ctx, models.BookingFilter{Role: models.RoleOwner, UserID: f.booker.ID, State: models.StateAll, Now: testNow, Limit: 20})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("UnknownState", func(t *testing.T) {
		_, err := db.ListBookings(ctx, models.BookingFilter{Role: models.RoleBooker, UserID: f.booker.ID, State: "BOGUS", Now: testNow, Limit: 20})
		assert.ErrorIs(t, err, models.ErrUnknownState)
	})
}

func TestListBookings_Pagination(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)

	var all []int64
	for i := 0; i < 5; i++ {
		start := testNow.Add(time.Duration(i+1) * time.Hour)
		b := createBooking(t, db, f.item.ID, f.booker.ID, start, start.Add(30*time.Minute), models.StatusWaiting)
		all = append([]int64{b.ID}, all...)
	}

	var seen []int64
	for _, from := range []int{0, 2, 4} {
		page, err := db.ListBookings(ctx, models.BookingFilter{
			Role: models.RoleBooker, UserID: f.booker.ID, State: models.StateAll, Now: testNow,
			Offset: models.PageOffset(from, 2), Limit: 2,
		})
		require.NoError(t, err)
		seen = append(seen, ids(page)...)
	}
	assert.Equal(t, all, seen)
}

func TestCompletedLastAndNextBookings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)
	day := 24 * time.Hour

	done := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(-3*day), testNow.Add(-2*day), models.StatusApproved)
	createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(-5*day), testNow.Add(-4*day), models.StatusRejected)
	soon := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(day), testNow.Add(2*day), models.StatusApproved)
	createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(3*day), testNow.Add(4*day), models.StatusApproved)
	createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(12*time.Hour), testNow.Add(day), models.StatusWaiting)

	completed, err := db.GetCompletedBookings(ctx, f.item.ID, f.booker.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, []int64{done.ID}, ids(completed))

	completed, err = db.GetCompletedBookings(ctx, f.item.ID, f.owner.ID, testNow)
	require.NoError(t, err)
	assert.Empty(t, completed)

	last, err := db.GetLastBooking(ctx, f.item.ID, testNow)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, done.ID, last.ID)

	next, err := db.GetNextBooking(ctx, f.item.ID, testNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, soon.ID, next.ID)

	none, err := db.GetNextBooking(ctx, f.item.ID, testNow.Add(30*day))
	require.NoError(t, err)
	assert.Nil(t, none)
}

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func TestBookingTimestampsFollowClock(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	clock := &stubClock{now: testNow}
	db.SetClock(clock)
	f := seed(t, db)
	assert.True(t, f.owner.CreatedAt.Equal(testNow))
	assert.True(t, f.item.UpdatedAt.Equal(testNow))

	b := createBooking(t, db, f.item.ID, f.booker.ID, testNow.Add(time.Hour), testNow.Add(2*time.Hour), models.StatusWaiting)
	assert.True(t, b.CreatedAt.Equal(testNow))

	clock.now = testNow.Add(30 * time.Minute)
	require.NoError(t, db.TransitionBookingStatus(ctx, b.ID, models.StatusWaiting, models.StatusApproved))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(testNow))
	assert.True(t, got.UpdatedAt.Equal(testNow.Add(30*time.Minute)))
}
