package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Conversations appends outbound messages to the customer's open
// conversation, creating one when needed.
type Conversations struct{ DB *pgxpool.Pool }

func (c *Conversations) Append(ctx context.Context, customerID, body, providerMessageID string) error {
	tx, err := c.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var convID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM conversations
		WHERE customer_id = $1 AND status = 'open'
		ORDER BY created_at DESC LIMIT 1`, customerID).Scan(&convID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `
			INSERT INTO conversations(customer_id, status) VALUES ($1, 'open')
			RETURNING id`, customerID).Scan(&convID)
	}
	if err != nil {
		return err
	}

	if err := insertOutbound(ctx, tx, convID, body, providerMessageID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Recipient returns the customer behind a conversation and their phone,
// which is empty when the customer never shared one.
func (c *Conversations) Recipient(ctx context.Context, conversationID string) (customerID, phone string, err error) {
	err = c.DB.QueryRow(ctx, `
		SELECT cv.customer_id, COALESCE(cu.phone_e164, '')
		FROM conversations cv JOIN customers cu ON cu.id = cv.customer_id
		WHERE cv.id = $1`, conversationID).Scan(&customerID, &phone)
	if missingRow(err) {
		return "", "", fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return customerID, phone, err
}

// AppendTo logs an operator reply in the given conversation.
func (c *Conversations) AppendTo(ctx context.Context, conversationID, body, providerMessageID string) error {
	return insertOutbound(ctx, c.DB, conversationID, body, providerMessageID)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertOutbound(ctx context.Context, db execer, convID, body, providerMessageID string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO messages(conversation_id, role, direction, body, provider_message_id)
		VALUES ($1, 'assistant', 'outbound', $2, NULLIF($3, ''))`,
		convID, body, providerMessageID)
	return err
}

// missingRow treats a malformed uuid like an absent row.
func missingRow(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
