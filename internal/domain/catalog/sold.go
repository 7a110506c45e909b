package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SoldRecord is an append-only ledger entry written on fulfillment.
type SoldRecord struct {
	ID            int64     `json:"id"`
	RecordID      uuid.UUID `json:"recordId"`
	Identity      string    `json:"identity"`
	Product       string    `json:"product"`
	Price         Amount    `json:"price"`
	BuyerID       string    `json:"buyerId"`
	BuyerName     string    `json:"buyerName"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId"`
	SoldAt        time.Time `json:"soldAt"`
}

// Ledger persists sold records. Records are never updated or removed.
type Ledger interface {
	Append(ctx context.Context, records []*SoldRecord) error
	List(ctx context.Context, limit, offset int) ([]*SoldRecord, error)
}
