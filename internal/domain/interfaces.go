package domain

import (
	"context"
	"time"

	"shareit/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	GetItemsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Item, error)
	GetItemsByRequests(ctx context.Context, requestIDs []int64) ([]*models.Item, error)
	SearchAvailableItems(ctx context.Context, text string, offset, limit int) ([]*models.Item, error)
}

// BookingRepository is the storage contract of the booking engine. Reads
// resolve item name, item owner and booker name alongside the booking row.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	// TransitionBookingStatus moves a booking from one status to another only
	// if it is still in from; otherwise it returns ErrConcurrentModification.
	TransitionBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetCompletedBookings(ctx context.Context, itemID, bookerID int64, now time.Time) ([]*models.Booking, error)
	GetLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error)
	GetNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.Booking, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByItems(ctx context.Context, itemIDs []int64) ([]*models.Comment, error)
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, request *models.ItemRequest) error
	GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error)
	GetRequestsByRequestor(ctx context.Context, requestorID int64) ([]*models.ItemRequest, error)
	GetRequestsExcept(ctx context.Context, requestorID int64, offset, limit int) ([]*models.ItemRequest, error)
}

// Store bundles every repository backed by one storage engine.
type Store interface {
	UserRepository
	ItemRepository
	BookingRepository
	CommentRepository
	RequestRepository
	Close() error
}

// QuotaRepository counts write requests per user inside a fixed window.
type QuotaRepository interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type BookingService interface {
	CreateBooking(ctx context.Context, bookerID int64, req models.CreateBookingRequest) (*models.BookingResponse, error)
	ApproveBooking(ctx context.Context, ownerID, bookingID int64, approved bool) (*models.BookingResponse, error)
	GetBooking(ctx context.Context, userID, bookingID int64) (*models.BookingResponse, error)
	ListBookings(ctx context.Context, role models.BookingRole, userID int64, state string, from, size int) ([]models.BookingResponse, error)
	HasCompletedBooking(ctx context.Context, itemID, userID int64) (bool, error)
}
