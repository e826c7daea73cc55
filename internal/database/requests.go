package database

import (
	"context"
	"fmt"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/doug-martin/goqu/v9"
)

var requestColumns = []interface{}{"id", "description", "requestor_id", "created"}

func (db *DB) CreateRequest(ctx context.Context, request *models.ItemRequest) error {
	if request.Created.IsZero() {
		request.Created = db.now()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO requests (description, requestor_id, created) VALUES (?, ?, ?)`,
		request.Description, request.RequestorID, request.Created.UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: requestor %d", domain.ErrNotFound, request.RequestorID)
		}
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	request.ID = id
	return nil
}

func (db *DB) GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error) {
	var request models.ItemRequest
	err := db.GetContext(ctx, &request, `SELECT id, description, requestor_id, created FROM requests WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return &request, nil
}

func (db *DB) GetRequestsByRequestor(ctx context.Context, requestorID int64) ([]*models.ItemRequest, error) {
	ds := dialect.From("requests").Select(requestColumns...).
		Where(goqu.C("requestor_id").Eq(requestorID)).
		Order(goqu.C("created").Desc(), goqu.C("id").Desc())
	return db.selectRequests(ctx, ds)
}

// GetRequestsExcept lists everyone else's requests, newest first.
func (db *DB) GetRequestsExcept(ctx context.Context, requestorID int64, offset, limit int) ([]*models.ItemRequest, error) {
	ds := dialect.From("requests").Select(requestColumns...).
		Where(goqu.C("requestor_id").Neq(requestorID)).
		Order(goqu.C("created").Desc(), goqu.C("id").Desc())
	return db.selectRequests(ctx, paginate(ds, offset, limit))
}

func (db *DB) selectRequests(ctx context.Context, ds *goqu.SelectDataset) ([]*models.ItemRequest, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build request query: %w", err)
	}

	requests := []*models.ItemRequest{}
	if err := db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get requests: %w", err)
	}
	return requests, nil
}
