package database

import (
	"context"
	"fmt"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
)

func (db *DB) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.Created.IsZero() {
		comment.Created = db.now()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO comments (text, item_id, author_id, created) VALUES (?, ?, ?, ?)`,
		comment.Text, comment.ItemID, comment.AuthorID, comment.Created.UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: item or author of comment does not exist", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	comment.ID = id
	return nil
}

func (db *DB) GetCommentsByItems(ctx context.Context, itemIDs []int64) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	if len(itemIDs) == 0 {
		return comments, nil
	}

	query, args, err := dialect.From(goqu.T("comments").As("c")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("c.author_id")))).
		Select(
			goqu.I("c.id").As("id"),
			goqu.I("c.text").As("text"),
			goqu.I("c.item_id").As("item_id"),
			goqu.I("c.author_id").As("author_id"),
			goqu.I("u.name").As("author_name"),
			goqu.I("c.created").As("created"),
		).
		Where(goqu.I("c.item_id").In(itemIDs)).
		Order(goqu.I("c.created").Asc(), goqu.I("c.id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build comment query: %w", err)
	}

	if err := db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	return comments, nil
}
