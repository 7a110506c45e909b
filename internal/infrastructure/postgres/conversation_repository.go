package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Load(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT identity, user_id, user_name, phase, stop_communication, cart, finalized, payment_method, transaction_id, selected_category, created_at, updated_at
		FROM conversations WHERE identity=$1 AND user_id=$2
	`, string(key.Identity), key.UserID)
	return scanConversation(row)
}

// Save rewrites the whole record. Cart and finalized payloads are written in the same statement.
func (r *ConversationRepository) Save(ctx context.Context, s *conversation.State) error {
	cart, err := json.Marshal(s.Cart)
	if err != nil {
		return err
	}
	finalized, err := json.Marshal(s.Finalized)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO conversations
		(identity, user_id, user_name, phase, stop_communication, cart, finalized, payment_method, transaction_id, selected_category, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (identity, user_id) DO UPDATE SET
			user_name=EXCLUDED.user_name,
			phase=EXCLUDED.phase,
			stop_communication=EXCLUDED.stop_communication,
			cart=EXCLUDED.cart,
			finalized=EXCLUDED.finalized,
			payment_method=EXCLUDED.payment_method,
			transaction_id=EXCLUDED.transaction_id,
			selected_category=EXCLUDED.selected_category,
			updated_at=EXCLUDED.updated_at
	`, string(s.Key.Identity), s.Key.UserID, s.UserName, s.Phase, s.StopCommunication, cart, finalized,
		s.PaymentMethod, s.TransactionID, s.SelectedCategory, s.CreatedAt, s.UpdatedAt)
	return err
}

func scanConversation(row pgx.Row) (*conversation.State, error) {
	var s conversation.State
	var identity string
	var cart, finalized []byte
	if err := row.Scan(&identity, &s.Key.UserID, &s.UserName, &s.Phase, &s.StopCommunication, &cart, &finalized,
		&s.PaymentMethod, &s.TransactionID, &s.SelectedCategory, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.Key.Identity = session.Fingerprint(identity)
	if err := json.Unmarshal(cart, &s.Cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if err := json.Unmarshal(finalized, &s.Finalized); err != nil {
		return nil, fmt.Errorf("decode finalized: %w", err)
	}
	return &s, nil
}
