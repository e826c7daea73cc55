package database

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
)

var itemColumns = []interface{}{
	"id", "name", "description", "is_available", "owner_id", "request_id", "created_at", "updated_at",
}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	now := db.now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, description, is_available, owner_id, request_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Description, item.Available, item.OwnerID, item.RequestID, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: owner or request of item does not exist", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	query, args, err := dialect.From("items").Select(itemColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	var item models.Item
	if err := db.GetContext(ctx, &item, query, args...); err != nil {
		return nil, notFound(err, "item", id)
	}
	return &item, nil
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	now := db.now()
	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, is_available = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.Description, item.Available, now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: item %d", domain.ErrNotFound, item.ID)
	}
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItemsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Item, error) {
	ds := dialect.From("items").Select(itemColumns...).
		Where(goqu.C("owner_id").Eq(ownerID)).
		Order(goqu.C("id").Asc())
	return db.selectItems(ctx, paginate(ds, offset, limit))
}

func (db *DB) GetItemsByRequests(ctx context.Context, requestIDs []int64) ([]*models.Item, error) {
	if len(requestIDs) == 0 {
		return []*models.Item{}, nil
	}
	ds := dialect.From("items").Select(itemColumns...).
		Where(goqu.C("request_id").In(requestIDs)).
		Order(goqu.C("id").Asc())
	return db.selectItems(ctx, ds)
}

// SearchAvailableItems matches text case-insensitively against name or description.
func (db *DB) SearchAvailableItems(ctx context.Context, text string, offset, limit int) ([]*models.Item, error) {
	pattern := "%" + strings.ToLower(text) + "%"
	ds := dialect.From("items").Select(itemColumns...).
		Where(
			goqu.C("is_available").Eq(true),
			goqu.Or(
				goqu.Func("LOWER", goqu.C("name")).Like(pattern),
				goqu.Func("LOWER", goqu.C("description")).Like(pattern),
			),
		).
		Order(goqu.C("id").Asc())
	return db.selectItems(ctx, paginate(ds, offset, limit))
}

func (db *DB) selectItems(ctx context.Context, ds *goqu.SelectDataset) ([]*models.Item, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	items := []*models.Item{}
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	return items, nil
}

func paginate(ds *goqu.SelectDataset, offset, limit int) *goqu.SelectDataset {
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds
}
