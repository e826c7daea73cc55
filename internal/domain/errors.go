package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrUnavailableItem = errors.New("item is unavailable")
	ErrSelfBooking     = errors.New("owner cannot book own item")
	ErrConflict        = errors.New("conflict")

	// ErrConcurrentModification is returned by storage when a compare-and-set
	// lost to another writer.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// IsClientError reports whether err is caused by caller input rather than a fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnavailableItem) ||
		errors.Is(err, ErrSelfBooking) ||
		errors.Is(err, ErrConflict)
}
