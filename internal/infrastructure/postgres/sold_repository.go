package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmstore/dmstore/internal/domain/catalog"
)

// SoldRepository implements catalog.Ledger.
type SoldRepository struct {
	pool *pgxpool.Pool
}

func NewSoldRepository(pool *pgxpool.Pool) *SoldRepository {
	return &SoldRepository{pool: pool}
}

// Append writes every record of one fulfillment in a single transaction.
func (r *SoldRepository) Append(ctx context.Context, records []*catalog.SoldRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sold_records
				(record_id, identity, product, price_cents, buyer_id, buyer_name, payment_method, transaction_id, sold_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, rec.RecordID, rec.Identity, rec.Product, int64(rec.Price), rec.BuyerID, rec.BuyerName,
				rec.PaymentMethod, rec.TransactionID, rec.SoldAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SoldRepository) List(ctx context.Context, limit, offset int) ([]*catalog.SoldRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, identity, product, price_cents, buyer_id, buyer_name, payment_method, transaction_id, sold_at
		FROM sold_records ORDER BY sold_at DESC, id DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*catalog.SoldRecord
	for rows.Next() {
		var rec catalog.SoldRecord
		var price int64
		if err := rows.Scan(&rec.ID, &rec.RecordID, &rec.Identity, &rec.Product, &price, &rec.BuyerID, &rec.BuyerName,
			&rec.PaymentMethod, &rec.TransactionID, &rec.SoldAt); err != nil {
			return nil, err
		}
		rec.Price = catalog.Amount(price)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
