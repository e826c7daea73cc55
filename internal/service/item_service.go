package service

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// NewItem is the input of CreateItem. Available is a pointer because the
// flag is mandatory and false is a legal value.
type NewItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   *bool  `json:"available"`
	RequestID   *int64 `json:"requestId"`
}

type ItemService struct {
	users    domain.UserRepository
	items    domain.ItemRepository
	bookings domain.BookingRepository
	comments domain.CommentRepository
	requests domain.RequestRepository
	clock    domain.Clock
	logger   *zerolog.Logger
}

func NewItemService(store domain.Store, clock domain.Clock, logger *zerolog.Logger) *ItemService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ItemService{
		users:    store,
		items:    store,
		bookings: store,
		comments: store,
		requests: store,
		clock:    clock,
		logger:   logger,
	}
}

func (s *ItemService) CreateItem(ctx context.Context, ownerID int64, in NewItem) (*models.ItemResponse, error) {
	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if in.Available == nil {
		return nil, fmt.Errorf("%w: available is required", domain.ErrValidation)
	}

	if in.RequestID != nil {
		request, err := s.requests.GetRequestByID(ctx, *in.RequestID)
		if err != nil {
			return nil, err
		}
		if request.RequestorID == ownerID {
			return nil, fmt.Errorf("%w: cannot answer own request %d", domain.ErrValidation, request.ID)
		}
	}

	item := &models.Item{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Available:   *in.Available,
		OwnerID:     ownerID,
		RequestID:   in.RequestID,
	}
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", ownerID).Msg("item created")

	resp := models.NewItemResponse(item)
	return &resp, nil
}

// UpdateItem applies the non-nil fields of patch. Items of other owners are
// reported as missing.
func (s *ItemService) UpdateItem(ctx context.Context, ownerID, itemID int64, patch models.ItemPatch) (*models.ItemResponse, error) {
	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: item %d of user %d", domain.ErrNotFound, itemID, ownerID)
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}

	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	resp := models.NewItemResponse(item)
	return &resp, nil
}

// GetItem returns the item with its comments. Last and next bookings are
// shown to the owner only.
func (s *ItemService) GetItem(ctx context.Context, userID, itemID int64) (*models.ItemResponse, error) {
	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	views, err := s.decorate(ctx, []*models.Item{item}, item.OwnerID == userID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ItemService) ListOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]models.ItemResponse, error) {
	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}
	offset, limit, err := resolvePage(from, size)
	if err != nil {
		return nil, err
	}

	items, err := s.items.GetItemsByOwner(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, items, true)
}

// SearchItems matches available items by name or description. Blank text finds nothing.
func (s *ItemService) SearchItems(ctx context.Context, text string, from, size int) ([]models.ItemResponse, error) {
	offset, limit, err := resolvePage(from, size)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []models.ItemResponse{}, nil
	}

	items, err := s.items.SearchAvailableItems(ctx, strings.TrimSpace(text), offset, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, models.NewItemResponse(item))
	}
	return out, nil
}

func (s *ItemService) decorate(ctx context.Context, items []*models.Item, withBookings bool) ([]models.ItemResponse, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	comments, err := s.comments.GetCommentsByItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64][]models.CommentResponse, len(items))
	for _, c := range comments {
		byItem[c.ItemID] = append(byItem[c.ItemID], models.NewCommentResponse(c))
	}

	now := s.clock.Now()
	out := make([]models.ItemResponse, 0, len(items))
	for _, item := range items {
		view := models.NewItemResponse(item)
		if c, ok := byItem[item.ID]; ok {
			view.Comments = c
		}

		if withBookings {
			last, err := s.bookings.GetLastBooking(ctx, item.ID, now)
			if err != nil {
				return nil, err
			}
			next, err := s.bookings.GetNextBooking(ctx, item.ID, now)
			if err != nil {
				return nil, err
			}
			view.LastBooking = models.NewBookingShort(last)
			view.NextBooking = models.NewBookingShort(next)
		}
		out = append(out, view)
	}
	return out, nil
}
