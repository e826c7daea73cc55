package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// bookingSelect joins the item and booker so reads can render a booking
// without further lookups.
func bookingSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("bookings").As("b")).
		Join(goqu.T("items").As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("b.item_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("b.booker_id")))).
		Select(
			goqu.I("b.id").As("id"),
			goqu.I("b.start_date").As("start_date"),
			goqu.I("b.end_date").As("end_date"),
			goqu.I("b.status").As("status"),
			goqu.I("b.item_id").As("item_id"),
			goqu.I("b.booker_id").As("booker_id"),
			goqu.I("b.version").As("version"),
			goqu.I("b.created_at").As("created_at"),
			goqu.I("b.updated_at").As("updated_at"),
			goqu.I("i.name").As("item_name"),
			goqu.I("i.owner_id").As("item_owner_id"),
			goqu.I("u.name").As("booker_name"),
		)
}

// statePredicate translates a state filter into a WHERE expression. ALL yields nil.
func statePredicate(state models.BookingState, now time.Time) (exp.Expression, error) {
	switch state {
	case models.StateAll:
		return nil, nil
	case models.StateCurrent:
		return goqu.And(goqu.I("b.start_date").Lt(now), goqu.I("b.end_date").Gt(now)), nil
	case models.StatePast:
		return goqu.I("b.end_date").Lt(now), nil
	case models.StateFuture:
		return goqu.I("b.start_date").Gt(now), nil
	case models.StateWaiting:
		return goqu.I("b.status").Eq(string(models.StatusWaiting)), nil
	case models.StateRejected:
		return goqu.I("b.status").Eq(string(models.StatusRejected)), nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownState, state)
	}
}

func subjectPredicate(role models.BookingRole, userID int64) exp.Expression {
	if role == models.RoleOwner {
		return goqu.I("i.owner_id").Eq(userID)
	}
	return goqu.I("b.booker_id").Eq(userID)
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := db.now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO bookings (start_date, end_date, item_id, booker_id, status, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.Start.UTC(), booking.End.UTC(), booking.ItemID, booking.BookerID,
		string(booking.Status), 1, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: item or booker of booking does not exist", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query, args, err := bookingSelect().Where(goqu.I("b.id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	var booking models.Booking
	if err := db.GetContext(ctx, &booking, query, args...); err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &booking, nil
}

func (db *DB) TransitionBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, string(to), db.now(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

// ListBookings returns one page of the subject's bookings in the filter's
// state, newest start first.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	ds := bookingSelect().Where(subjectPredicate(filter.Role, filter.UserID))

	pred, err := statePredicate(filter.State, filter.Now.UTC())
	if err != nil {
		return nil, err
	}
	if pred != nil {
		ds = ds.Where(pred)
	}

	ds = ds.Order(goqu.I("b.start_date").Desc(), goqu.I("b.id").Desc())
	return db.selectBookings(ctx, paginate(ds, filter.Offset, filter.Limit))
}

func (db *DB) GetCompletedBookings(ctx context.Context, itemID, bookerID int64, now time.Time) ([]*models.Booking, error) {
	ds := bookingSelect().Where(
		goqu.I("b.item_id").Eq(itemID),
		goqu.I("b.booker_id").Eq(bookerID),
		goqu.I("b.status").Eq(string(models.StatusApproved)),
		goqu.I("b.end_date").Lt(now.UTC()),
	).Order(goqu.I("b.end_date").Desc())
	return db.selectBookings(ctx, ds)
}

// GetLastBooking returns the latest approved booking that has already started, or nil.
func (db *DB) GetLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	ds := bookingSelect().Where(
		goqu.I("b.item_id").Eq(itemID),
		goqu.I("b.status").Eq(string(models.StatusApproved)),
		goqu.I("b.start_date").Lt(now.UTC()),
	).Order(goqu.I("b.start_date").Desc()).Limit(1)
	return db.firstBooking(ctx, ds)
}

// GetNextBooking returns the earliest approved booking that has not started yet, or nil.
func (db *DB) GetNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	ds := bookingSelect().Where(
		goqu.I("b.item_id").Eq(itemID),
		goqu.I("b.status").Eq(string(models.StatusApproved)),
		goqu.I("b.start_date").Gt(now.UTC()),
	).Order(goqu.I("b.start_date").Asc()).Limit(1)
	return db.firstBooking(ctx, ds)
}

func (db *DB) firstBooking(ctx context.Context, ds *goqu.SelectDataset) (*models.Booking, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	var booking models.Booking
	err = db.GetContext(ctx, &booking, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (db *DB) selectBookings(ctx context.Context, ds *goqu.SelectDataset) ([]*models.Booking, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	bookings := []*models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
