package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
)

// ScanRepository implements mailbox.ScanRepository.
type ScanRepository struct {
	pool *pgxpool.Pool
}

func NewScanRepository(pool *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{pool: pool}
}

func (r *ScanRepository) Create(ctx context.Context, s *mailbox.Scan) error {
	messages, err := json.Marshal(s.Messages)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO mailbox_scans
		(scan_id, identity, user_id, transaction_id, found, messages, error, scanned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, s.ScanID, s.Identity, s.UserID, s.TransactionID, s.Found, messages, s.Error, s.ScannedAt).Scan(&s.ID)
}
