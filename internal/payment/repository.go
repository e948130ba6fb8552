package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"gamekeys-be/internal/db"
	"gamekeys-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	SavePayment(ctx context.Context, p *Payment) error
	GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error)
	GetPaymentByConversationID(ctx context.Context, conversationID string) (*Payment, error)
	// MarkPaymentProcessing records the provider's reference on a payment
	// that is still initiated.
	MarkPaymentProcessing(ctx context.Context, paymentID uint, externalID string, raw json.RawMessage) error
	// SettlePayment applies s atomically. It returns false when the payment
	// had already left initiated/processing, and ErrDuplicateSuccess when
	// another payment of the order already succeeded.
	SettlePayment(ctx context.Context, s Settlement) (bool, error)

	// SaveWebhookEvent records a pushed event. Redeliveries bump the attempt
	// counter; processed is true when an earlier delivery completed.
	SaveWebhookEvent(ctx context.Context, ev *WebhookEvent) (id int64, processed bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

const uniqueViolation = "23505"

type repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) Repository {
	return &repository{db: conn}
}

// jsonArg keeps JSON payloads in text form; lib/pq would send []byte as bytea.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *repository) SavePayment(ctx context.Context, p *Payment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, user_id, provider, conversation_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		p.OrderID, p.UserID, p.Provider, p.ConversationID, p.Amount, p.Currency, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateReference.Wrap(err)
	}
	return err
}

const selectPayment = `
	SELECT id, order_id, user_id, provider, conversation_id, external_id,
		amount, currency, status, raw_payload, created_at, updated_at
	FROM payments
`

func (r *repository) scanPayment(row *sql.Row) (*Payment, error) {
	var (
		p          Payment
		externalID sql.NullString
		raw        []byte
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Provider, &p.ConversationID, &externalID,
		&p.Amount, &p.Currency, &p.Status, &raw, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		p.ExternalID = &externalID.String
	}
	if len(raw) > 0 {
		p.RawPayload = json.RawMessage(raw)
	}
	return &p, nil
}

func (r *repository) GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	return r.scanPayment(r.db.QueryRowContext(ctx, selectPayment+` WHERE external_id = $1`, externalID))
}

func (r *repository) GetPaymentByConversationID(ctx context.Context, conversationID string) (*Payment, error) {
	return r.scanPayment(r.db.QueryRowContext(ctx, selectPayment+` WHERE conversation_id = $1`, conversationID))
}

func (r *repository) MarkPaymentProcessing(ctx context.Context, paymentID uint, externalID string, raw json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'processing', external_id = $2, raw_payload = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'initiated'
	`, paymentID, externalID, jsonArg(raw))
	return err
}

func (r *repository) SettlePayment(ctx context.Context, s Settlement) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "SettlePayment"),
		zap.Uint("payment_id", s.PaymentID),
		zap.Uint("order_id", s.OrderID),
		zap.String("to", string(s.To)),
	)

	won := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. Single-writer gate on the payment row
		res, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = $2, raw_payload = COALESCE($3::jsonb, raw_payload), updated_at = NOW()
			WHERE id = $1 AND status IN ('initiated', 'processing')
		`, s.PaymentID, s.To, jsonArg(s.Raw))
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return ErrDuplicateSuccess.Wrap(err)
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		won = true

		// 2. Move the order only from the expected state
		trackStatus, trackMsg := s.TrackingStatus, s.TrackingMessage
		if s.OrderTo != "" {
			res, err := tx.ExecContext(ctx, `
				UPDATE orders
				SET status = $2, updated_at = NOW()
				WHERE id = $1 AND status = $3
			`, s.OrderID, s.OrderTo, s.OrderFrom)
			if err != nil {
				return err
			}
			moved, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if moved == 0 && s.UnmovedMessage != "" {
				if err := tx.QueryRowContext(ctx,
					`SELECT status FROM orders WHERE id = $1`, s.OrderID,
				).Scan(&trackStatus); err != nil {
					return err
				}
				trackMsg = s.UnmovedMessage
				log.Warn("order not in expected state", zap.String("current", trackStatus))
			}
		}

		// 3. History entry
		if trackStatus != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_tracking (order_id, status, message)
				VALUES ($1, $2, $3)
			`, s.OrderID, trackStatus, trackMsg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSuccess) {
			return false, err
		}
		log.Error("settle payment failed", zap.Error(err))
		return false, err
	}
	return won, nil
}

func (r *repository) SaveWebhookEvent(ctx context.Context, ev *WebhookEvent) (int64, bool, error) {
	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		external_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET attempts = payment_webhooks.attempts + 1
	RETURNING id, processed_at IS NOT NULL;
	`

	var (
		id        int64
		processed bool
	)
	payload := jsonArg(ev.Payload)
	if payload == nil {
		payload = "{}"
	}
	err := r.db.QueryRowContext(ctx, q,
		ev.Provider,
		ev.EventID,
		ev.EventType,
		ev.ExternalID,
		ev.SignatureValid,
		payload,
	).Scan(&id, &processed)
	if err != nil {
		return 0, false, err
	}
	ev.ID = id
	return id, processed, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = NOW(), process_error = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
