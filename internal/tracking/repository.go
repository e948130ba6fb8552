package tracking

import (
	"context"
	"database/sql"
)

type Repository interface {
	AppendTracking(ctx context.Context, e *Entry) error
	ListTracking(ctx context.Context, orderID uint) ([]Entry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) AppendTracking(ctx context.Context, e *Entry) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO order_tracking (order_id, status, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, e.OrderID, e.Status, e.Message).Scan(&e.ID, &e.CreatedAt)
}

func (r *repository) ListTracking(ctx context.Context, orderID uint) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, status, message, created_at
		FROM order_tracking
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
