package tracking

import (
	"context"
	"sort"

	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

// Log is the append-only order history.
type Log struct {
	repo Repository
}

func NewLog(repo Repository) *Log {
	return &Log{repo: repo}
}

func (l *Log) Append(ctx context.Context, orderID uint, status, message string) error {
	e := &Entry{OrderID: orderID, Status: status, Message: message}
	if err := l.repo.AppendTracking(ctx, e); err != nil {
		logger.FromCtx(ctx).Error("append tracking entry failed",
			zap.String("layer", "tracking"),
			zap.Uint("order_id", orderID),
			zap.String("status", status),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ReadHistory returns entries oldest first, ties broken by id.
func (l *Log) ReadHistory(ctx context.Context, orderID uint) ([]Entry, error) {
	entries, err := l.repo.ListTracking(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}
