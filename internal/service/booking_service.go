package service

import (
	"context"
	"errors"
	"fmt"

	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

var (
	errNotOwner   = fmt.Errorf("%w: user is not the owner of the item", domain.ErrValidation)
	errNotWaiting = fmt.Errorf("%w: booking is not in waiting status", domain.ErrValidation)
)

type BookingService struct {
	users    domain.UserRepository
	items    domain.ItemRepository
	bookings domain.BookingRepository
	eventBus domain.EventPublisher
	clock    domain.Clock
	logger   *zerolog.Logger
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(
	users domain.UserRepository,
	items domain.ItemRepository,
	bookings domain.BookingRepository,
	eventBus domain.EventPublisher,
	clock domain.Clock,
	logger *zerolog.Logger,
) *BookingService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &BookingService{
		users:    users,
		items:    items,
		bookings: bookings,
		eventBus: eventBus,
		clock:    clock,
		logger:   logger,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, bookerID int64, req models.CreateBookingRequest) (*models.BookingResponse, error) {
	if req.ItemID <= 0 || req.Start.IsZero() || req.End.IsZero() {
		return nil, fmt.Errorf("%w: itemId, start and end are required", domain.ErrValidation)
	}

	booker, err := s.users.GetUserByID(ctx, bookerID)
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetItemByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	// only end < start is rejected, start == end is a valid booking
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: end time must be after start time", domain.ErrValidation)
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: item %d is not available for booking", domain.ErrUnavailableItem, item.ID)
	}
	if item.OwnerID == bookerID {
		return nil, fmt.Errorf("%w: item %d", domain.ErrSelfBooking, item.ID)
	}

	booking := &models.Booking{
		Start:    req.Start.UTC(),
		End:      req.End.UTC(),
		Status:   models.StatusWaiting,
		ItemID:   item.ID,
		BookerID: booker.ID,
	}
	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	booking.ItemName = item.Name
	booking.ItemOwnerID = item.OwnerID
	booking.BookerName = booker.Name

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", item.ID).
		Int64("booker_id", bookerID).
		Msg("booking created")

	metrics.IncTransition(string(booking.Status))
	s.publishEvent(events.EventBookingCreated, booking)

	resp := models.NewBookingResponse(booking)
	return &resp, nil
}

func (s *BookingService) ApproveBooking(ctx context.Context, ownerID, bookingID int64, approved bool) (*models.BookingResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.ItemOwnerID != ownerID {
		return nil, errNotOwner
	}
	if booking.Status != models.StatusWaiting {
		return nil, errNotWaiting
	}

	next := models.DecisionStatus(approved)
	if err := s.bookings.TransitionBookingStatus(ctx, booking.ID, models.StatusWaiting, next); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.logger.Warn().Int64("booking_id", booking.ID).Msg("booking decided concurrently")
			return nil, errNotWaiting
		}
		return nil, err
	}
	booking.Status = next
	booking.Version++

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("owner_id", ownerID).
		Str("status", string(next)).
		Msg("booking decided")

	metrics.IncTransition(string(next))
	if approved {
		s.publishEvent(events.EventBookingApproved, booking)
	} else {
		s.publishEvent(events.EventBookingRejected, booking)
	}

	resp := models.NewBookingResponse(booking)
	return &resp, nil
}

// GetBooking returns the booking to its booker or item owner. Anyone else
// gets the same NotFound as for a missing booking.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID int64) (*models.BookingResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotFound, bookingID)
	}

	resp := models.NewBookingResponse(booking)
	return &resp, nil
}

func (s *BookingService) ListBookings(
	ctx context.Context,
	role models.BookingRole,
	userID int64,
	state string,
	from, size int,
) ([]models.BookingResponse, error) {
	filter, err := newBookingFilter(role, userID, state, from, size, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("role", role.String()).
		Int64("user_id", userID).
		Str("state", string(filter.State)).
		Int("count", len(bookings)).
		Msg("bookings listed")

	return models.NewBookingResponses(bookings), nil
}

// HasCompletedBooking reports whether userID has an approved booking of itemID that already ended.
func (s *BookingService) HasCompletedBooking(ctx context.Context, itemID, userID int64) (bool, error) {
	completed, err := s.bookings.GetCompletedBookings(ctx, itemID, userID, s.clock.Now())
	if err != nil {
		return false, err
	}
	return len(completed) > 0, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		ItemID:     booking.ItemID,
		ItemName:   booking.ItemName,
		BookerID:   booking.BookerID,
		OwnerID:    booking.ItemOwnerID,
		Status:     string(booking.Status),
		Start:      booking.Start,
		End:        booking.End,
		OccurredAt: s.clock.Now(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
