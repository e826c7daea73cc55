package service

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// EligibilityChecker answers whether a user finished a booking of an item.
type EligibilityChecker interface {
	HasCompletedBooking(ctx context.Context, itemID, userID int64) (bool, error)
}

type CommentService struct {
	users       domain.UserRepository
	items       domain.ItemRepository
	comments    domain.CommentRepository
	eligibility EligibilityChecker
	clock       domain.Clock
	logger      *zerolog.Logger
}

func NewCommentService(
	users domain.UserRepository,
	items domain.ItemRepository,
	comments domain.CommentRepository,
	eligibility EligibilityChecker,
	clock domain.Clock,
	logger *zerolog.Logger,
) *CommentService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &CommentService{
		users:       users,
		items:       items,
		comments:    comments,
		eligibility: eligibility,
		clock:       clock,
		logger:      logger,
	}
}

func (s *CommentService) AddComment(ctx context.Context, userID, itemID int64, text string) (*models.CommentResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is required", domain.ErrValidation)
	}

	author, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.items.GetItemByID(ctx, itemID); err != nil {
		return nil, err
	}

	ok, err := s.eligibility.HasCompletedBooking(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: user has not completed a booking of this item", domain.ErrValidation)
	}

	comment := &models.Comment{
		Text:       strings.TrimSpace(text),
		ItemID:     itemID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Created:    s.clock.Now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("comment_id", comment.ID).Int64("item_id", itemID).Int64("author_id", userID).Msg("comment added")

	resp := models.NewCommentResponse(comment)
	return &resp, nil
}
