package service

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type RequestService struct {
	users    domain.UserRepository
	items    domain.ItemRepository
	requests domain.RequestRepository
	clock    domain.Clock
	logger   *zerolog.Logger
}

func NewRequestService(
	users domain.UserRepository,
	items domain.ItemRepository,
	requests domain.RequestRepository,
	clock domain.Clock,
	logger *zerolog.Logger,
) *RequestService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RequestService{users: users, items: items, requests: requests, clock: clock, logger: logger}
}

func (s *RequestService) CreateRequest(ctx context.Context, userID int64, description string) (*models.RequestResponse, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}

	request := &models.ItemRequest{
		Description: strings.TrimSpace(description),
		RequestorID: userID,
		Created:     s.clock.Now(),
	}
	if err := s.requests.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("request_id", request.ID).Int64("requestor_id", userID).Msg("request created")

	resp := models.NewRequestResponse(request, nil)
	return &resp, nil
}

func (s *RequestService) ListOwnRequests(ctx context.Context, userID int64) ([]models.RequestResponse, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	requests, err := s.requests.GetRequestsByRequestor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, requests)
}

func (s *RequestService) ListOtherRequests(ctx context.Context, userID int64, from, size int) ([]models.RequestResponse, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	offset, limit, err := resolvePage(from, size)
	if err != nil {
		return nil, err
	}

	requests, err := s.requests.GetRequestsExcept(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, requests)
}

func (s *RequestService) GetRequest(ctx context.Context, userID, requestID int64) (*models.RequestResponse, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	request, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	views, err := s.withItems(ctx, []*models.ItemRequest{request})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// withItems attaches the items that answer each request.
func (s *RequestService) withItems(ctx context.Context, requests []*models.ItemRequest) ([]models.RequestResponse, error) {
	ids := make([]int64, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}

	items, err := s.items.GetItemsByRequests(ctx, ids)
	if err != nil {
		return nil, err
	}
	byRequest := make(map[int64][]*models.Item, len(requests))
	for _, item := range items {
		if item.RequestID != nil {
			byRequest[*item.RequestID] = append(byRequest[*item.RequestID], item)
		}
	}

	out := make([]models.RequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, models.NewRequestResponse(r, byRequest[r.ID]))
	}
	return out, nil
}
