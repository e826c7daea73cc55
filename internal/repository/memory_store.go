package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// MemoryStore is an in-process implementation of domain.Store. Each instance
// owns its own data; it is used by tests and by the "memory" database driver.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	items    map[int64]models.Item
	bookings map[int64]models.Booking
	comments map[int64]models.Comment
	requests map[int64]models.ItemRequest
	lastID   map[string]int64
	now      func() time.Time
}

var _ domain.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]models.User),
		items:    make(map[int64]models.Item),
		bookings: make(map[int64]models.Booking),
		comments: make(map[int64]models.Comment),
		requests: make(map[int64]models.ItemRequest),
		lastID:   make(map[string]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *MemoryStore) emailTaken(email string, exceptID int64) bool {
	for _, u := range s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// Users

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, user.Email)
	}
	now := s.now()
	user.ID = s.nextID("users")
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: user with email %s", domain.ErrNotFound, email)
}

func (s *MemoryStore) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, user.ID)
	}
	if s.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, user.Email)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = s.now()
	s.users[user.ID] = *user
	return nil
}

// DeleteUser removes the user with their items, requests and comments.
// A user involved in any booking, as booker or item owner, is kept.
func (s *MemoryStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	for _, b := range s.bookings {
		if b.BookerID == id || s.items[b.ItemID].OwnerID == id {
			return fmt.Errorf("%w: user %d has bookings", domain.ErrConflict, id)
		}
	}
	delete(s.users, id)

	for itemID, item := range s.items {
		if item.OwnerID == id {
			delete(s.items, itemID)
		}
	}
	for reqID, req := range s.requests {
		if req.RequestorID == id {
			delete(s.requests, reqID)
		}
	}
	for itemID, item := range s.items {
		if item.RequestID != nil {
			if _, ok := s.requests[*item.RequestID]; !ok {
				item.RequestID = nil
				s.items[itemID] = item
			}
		}
	}
	for commentID, c := range s.comments {
		if _, ok := s.items[c.ItemID]; !ok || c.AuthorID == id {
			delete(s.comments, commentID)
		}
	}
	return nil
}

func (s *MemoryStore) GetAllUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Items

func (s *MemoryStore) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[item.OwnerID]; !ok {
		return fmt.Errorf("%w: owner or request of item does not exist", domain.ErrNotFound)
	}
	if item.RequestID != nil {
		if _, ok := s.requests[*item.RequestID]; !ok {
			return fmt.Errorf("%w: owner or request of item does not exist", domain.ErrNotFound)
		}
	}
	now := s.now()
	item.ID = s.nextID("items")
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) GetItemByID(_ context.Context, id int64) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", domain.ErrNotFound, id)
	}
	return &item, nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("%w: item %d", domain.ErrNotFound, item.ID)
	}
	existing.Name = item.Name
	existing.Description = item.Description
	existing.Available = item.Available
	existing.UpdatedAt = s.now()
	s.items[item.ID] = existing
	item.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) GetItemsByOwner(_ context.Context, ownerID int64, offset, limit int) ([]*models.Item, error) {
	return s.filterItems(func(item *models.Item) bool { return item.OwnerID == ownerID }, offset, limit), nil
}

func (s *MemoryStore) GetItemsByRequests(_ context.Context, requestIDs []int64) ([]*models.Item, error) {
	wanted := make(map[int64]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		wanted[id] = struct{}{}
	}
	return s.filterItems(func(item *models.Item) bool {
		if item.RequestID == nil {
			return false
		}
		_, ok := wanted[*item.RequestID]
		return ok
	}, 0, 0), nil
}

func (s *MemoryStore) SearchAvailableItems(_ context.Context, text string, offset, limit int) ([]*models.Item, error) {
	needle := strings.ToLower(text)
	return s.filterItems(func(item *models.Item) bool {
		return item.Available &&
			(strings.Contains(strings.ToLower(item.Name), needle) ||
				strings.Contains(strings.ToLower(item.Description), needle))
	}, offset, limit), nil
}

func (s *MemoryStore) filterItems(keep func(*models.Item) bool, offset, limit int) []*models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []*models.Item{}
	for _, item := range s.items {
		item := item
		if keep(&item) {
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return page(items, offset, limit)
}

// Bookings

func (s *MemoryStore) CreateBooking(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[booking.ItemID]; !ok {
		return fmt.Errorf("%w: item or booker of booking does not exist", domain.ErrNotFound)
	}
	if _, ok := s.users[booking.BookerID]; !ok {
		return fmt.Errorf("%w: item or booker of booking does not exist", domain.ErrNotFound)
	}
	now := s.now()
	booking.ID = s.nextID("bookings")
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Start = booking.Start.UTC()
	booking.End = booking.End.UTC()
	s.bookings[booking.ID] = *booking
	return nil
}

// resolve fills the joined fields. Callers hold s.mu.
func (s *MemoryStore) resolve(b models.Booking) *models.Booking {
	if item, ok := s.items[b.ItemID]; ok {
		b.ItemName = item.Name
		b.ItemOwnerID = item.OwnerID
	}
	if u, ok := s.users[b.BookerID]; ok {
		b.BookerName = u.Name
	}
	return &b
}

func (s *MemoryStore) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
	}
	return s.resolve(b), nil
}

func (s *MemoryStore) TransitionBookingStatus(_ context.Context, id int64, from, to models.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return domain.ErrConcurrentModification
	}
	b.Status = to
	b.Version++
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return nil
}

func (s *MemoryStore) ListBookings(_ context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	state, err := models.ParseBookingState(string(filter.State))
	if err != nil {
		return nil, err
	}
	bookings := s.filterBookings(func(b *models.Booking) bool {
		return filter.Subject(b) && state.Matches(b, filter.Now)
	})
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID > bookings[j].ID
		}
		return bookings[i].Start.After(bookings[j].Start)
	})
	return page(bookings, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) GetCompletedBookings(_ context.Context, itemID, bookerID int64, now time.Time) ([]*models.Booking, error) {
	bookings := s.filterBookings(func(b *models.Booking) bool {
		return b.ItemID == itemID && b.BookerID == bookerID && b.Completed(now)
	})
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].End.After(bookings[j].End) })
	return bookings, nil
}

func (s *MemoryStore) GetLastBooking(_ context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	var last *models.Booking
	for _, b := range s.filterBookings(func(b *models.Booking) bool {
		return b.ItemID == itemID && b.Status == models.StatusApproved && b.Start.Before(now)
	}) {
		if last == nil || b.Start.After(last.Start) {
			last = b
		}
	}
	return last, nil
}

func (s *MemoryStore) GetNextBooking(_ context.Context, itemID int64, now time.Time) (*models.Booking, error) {
	var next *models.Booking
	for _, b := range s.filterBookings(func(b *models.Booking) bool {
		return b.ItemID == itemID && b.Status == models.StatusApproved && b.Start.After(now)
	}) {
		if next == nil || b.Start.Before(next.Start) {
			next = b
		}
	}
	return next, nil
}

func (s *MemoryStore) filterBookings(keep func(*models.Booking) bool) []*models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Booking{}
	for _, b := range s.bookings {
		resolved := s.resolve(b)
		if keep(resolved) {
			out = append(out, resolved)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Comments

func (s *MemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[comment.ItemID]; !ok {
		return fmt.Errorf("%w: item or author of comment does not exist", domain.ErrNotFound)
	}
	author, ok := s.users[comment.AuthorID]
	if !ok {
		return fmt.Errorf("%w: item or author of comment does not exist", domain.ErrNotFound)
	}
	if comment.Created.IsZero() {
		comment.Created = s.now()
	}
	comment.ID = s.nextID("comments")
	comment.AuthorName = author.Name
	s.comments[comment.ID] = *comment
	return nil
}

func (s *MemoryStore) GetCommentsByItems(_ context.Context, itemIDs []int64) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = struct{}{}
	}

	comments := []*models.Comment{}
	for _, c := range s.comments {
		if _, ok := wanted[c.ItemID]; !ok {
			continue
		}
		c := c
		if u, ok := s.users[c.AuthorID]; ok {
			c.AuthorName = u.Name
		}
		comments = append(comments, &c)
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].Created.Equal(comments[j].Created) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].Created.Before(comments[j].Created)
	})
	return comments, nil
}

// Requests

func (s *MemoryStore) CreateRequest(_ context.Context, request *models.ItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[request.RequestorID]; !ok {
		return fmt.Errorf("%w: requestor %d", domain.ErrNotFound, request.RequestorID)
	}
	if request.Created.IsZero() {
		request.Created = s.now()
	}
	request.ID = s.nextID("requests")
	s.requests[request.ID] = *request
	return nil
}

func (s *MemoryStore) GetRequestByID(_ context.Context, id int64) (*models.ItemRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", domain.ErrNotFound, id)
	}
	return &r, nil
}

func (s *MemoryStore) GetRequestsByRequestor(_ context.Context, requestorID int64) ([]*models.ItemRequest, error) {
	return s.filterRequests(func(r *models.ItemRequest) bool { return r.RequestorID == requestorID }, 0, 0), nil
}

func (s *MemoryStore) GetRequestsExcept(_ context.Context, requestorID int64, offset, limit int) ([]*models.ItemRequest, error) {
	return s.filterRequests(func(r *models.ItemRequest) bool { return r.RequestorID != requestorID }, offset, limit), nil
}

func (s *MemoryStore) filterRequests(keep func(*models.ItemRequest) bool, offset, limit int) []*models.ItemRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.ItemRequest{}
	for _, r := range s.requests {
		r := r
		if keep(&r) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID > out[j].ID
		}
		return out[i].Created.After(out[j].Created)
	})
	return page(out, offset, limit)
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return all[:0]
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
