// Package sqlite persists conversations, the sold ledger and mailbox scan audits in one SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// Store implements conversation.Repository, catalog.Ledger and mailbox.ScanRepository.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps concurrent per-user saves from racing into SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT identity, user_id, user_name, phase, stop_communication, cart_json, finalized_json,
	payment_method, transaction_id, selected_category, created_at, updated_at
FROM conversations WHERE identity = ? AND user_id = ?
`, string(key.Identity), key.UserID)

	var (
		st               conversation.State
		identity         string
		stop             int
		cart, finalized  string
		created, updated int64
	)
	err := row.Scan(&identity, &st.Key.UserID, &st.UserName, &st.Phase, &stop, &cart, &finalized,
		&st.PaymentMethod, &st.TransactionID, &st.SelectedCategory, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	st.Key.Identity = session.Fingerprint(identity)
	st.StopCommunication = stop != 0
	st.CreatedAt = time.UnixMilli(created).UTC()
	st.UpdatedAt = time.UnixMilli(updated).UTC()
	if err := json.Unmarshal([]byte(cart), &st.Cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if err := json.Unmarshal([]byte(finalized), &st.Finalized); err != nil {
		return nil, fmt.Errorf("decode finalized: %w", err)
	}
	return &st, nil
}

// Save upserts the full record in one statement.
func (s *Store) Save(ctx context.Context, st *conversation.State) error {
	cart, err := json.Marshal(st.Cart)
	if err != nil {
		return err
	}
	finalized, err := json.Marshal(st.Finalized)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO conversations (
	identity, user_id, user_name, phase, stop_communication, cart_json, finalized_json,
	payment_method, transaction_id, selected_category, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity, user_id) DO UPDATE SET
	user_name = excluded.user_name,
	phase = excluded.phase,
	stop_communication = excluded.stop_communication,
	cart_json = excluded.cart_json,
	finalized_json = excluded.finalized_json,
	payment_method = excluded.payment_method,
	transaction_id = excluded.transaction_id,
	selected_category = excluded.selected_category,
	updated_at = excluded.updated_at
`,
		string(st.Key.Identity), st.Key.UserID, st.UserName, string(st.Phase), boolInt(st.StopCommunication),
		string(cart), string(finalized), st.PaymentMethod, st.TransactionID, st.SelectedCategory,
		st.CreatedAt.UTC().UnixMilli(), st.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Append writes one fulfillment's records atomically.
func (s *Store) Append(ctx context.Context, records []*catalog.SoldRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sold append: %w", err)
	}
	for _, rec := range records {
		if rec.RecordID == uuid.Nil {
			rec.RecordID = uuid.New()
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO sold_records (
	record_id, identity, product, price_cents, buyer_id, buyer_name, payment_method, transaction_id, sold_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			rec.RecordID.String(), rec.Identity, rec.Product, int64(rec.Price), rec.BuyerID, rec.BuyerName,
			rec.PaymentMethod, rec.TransactionID, rec.SoldAt.UTC().UnixMilli(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append sold record: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			rec.ID = id
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sold append: %w", err)
	}
	return nil
}

// List returns sold records newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*catalog.SoldRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, record_id, identity, product, price_cents, buyer_id, buyer_name, payment_method, transaction_id, sold_at
FROM sold_records
ORDER BY sold_at DESC, id DESC
LIMIT ? OFFSET ?
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sold records: %w", err)
	}
	defer rows.Close()

	records := make([]*catalog.SoldRecord, 0, limit)
	for rows.Next() {
		var (
			rec      catalog.SoldRecord
			recordID string
			price    int64
			soldAt   int64
		)
		if err := rows.Scan(&rec.ID, &recordID, &rec.Identity, &rec.Product, &price, &rec.BuyerID, &rec.BuyerName,
			&rec.PaymentMethod, &rec.TransactionID, &soldAt); err != nil {
			return nil, fmt.Errorf("scan sold record: %w", err)
		}
		parsed, err := uuid.Parse(recordID)
		if err != nil {
			return nil, fmt.Errorf("parse record id: %w", err)
		}
		rec.RecordID = parsed
		rec.Price = catalog.Amount(price)
		rec.SoldAt = time.UnixMilli(soldAt).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sold records: %w", err)
	}
	return records, nil
}

// Create stores one mailbox scan audit.
func (s *Store) Create(ctx context.Context, scan *mailbox.Scan) error {
	messages, err := json.Marshal(scan.Messages)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO mailbox_scans (scan_id, identity, user_id, transaction_id, found, messages_json, error, scanned_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		scan.ScanID.String(), scan.Identity, scan.UserID, scan.TransactionID, boolInt(scan.Found),
		string(messages), scan.Error, scan.ScannedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create mailbox scan: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		scan.ID = id
	}
	return nil
}

// CountScans returns how many scans were recorded for a user.
func (s *Store) CountScans(ctx context.Context, identity, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailbox_scans WHERE identity = ? AND user_id = ?`, identity, userID).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ conversation.Repository = (*Store)(nil)
	_ catalog.Ledger          = (*Store)(nil)
	_ mailbox.ScanRepository  = (*Store)(nil)
)
