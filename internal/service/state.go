package service

import (
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// resolvePage validates from/size and returns the storage offset and limit.
// from snaps down to the page it falls on.
func resolvePage(from, size int) (offset, limit int, err error) {
	if from < 0 {
		return 0, 0, fmt.Errorf("%w: from must not be negative", domain.ErrValidation)
	}
	if size <= 0 {
		return 0, 0, fmt.Errorf("%w: size must be positive", domain.ErrValidation)
	}
	return models.PageOffset(from, size), size, nil
}

// newBookingFilter resolves the raw listing parameters into a storage query.
// An unknown state is a caller error.
func newBookingFilter(role models.BookingRole, userID int64, rawState string, from, size int, now time.Time) (models.BookingFilter, error) {
	state, err := models.ParseBookingState(rawState)
	if err != nil {
		return models.BookingFilter{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	offset, limit, err := resolvePage(from, size)
	if err != nil {
		return models.BookingFilter{}, err
	}

	return models.BookingFilter{
		Role:   role,
		UserID: userID,
		State:  state,
		Now:    now,
		Offset: offset,
		Limit:  limit,
	}, nil
}
