package mailbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is how many of the most recent messages a scan inspects.
const DefaultWindow = 10

// Credential authenticates read-only mailbox access.
type Credential struct {
	Address     string `json:"address"`
	AppPassword string `json:"-"`
}

// Valid reports whether both parts of the credential are present.
func (c Credential) Valid() bool {
	return c.Address != "" && c.AppPassword != ""
}

// Summary is the decoded view of one scanned message.
type Summary struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Body    string `json:"body"`
}

// Scan is the audit record of one verification attempt. It is written, never re-read by the engine.
type Scan struct {
	ID            int64     `json:"id"`
	ScanID        uuid.UUID `json:"scanId"`
	Identity      string    `json:"identity"`
	UserID        string    `json:"userId"`
	TransactionID string    `json:"transactionId"`
	Found         bool      `json:"found"`
	Messages      []Summary `json:"messages"`
	Error         *string   `json:"error,omitempty"`
	ScannedAt     time.Time `json:"scannedAt"`
}

// Fetcher returns up to limit of the most recent messages, oldest first.
type Fetcher interface {
	Recent(ctx context.Context, cred Credential, limit int) ([]Summary, error)
}

// ScanRepository persists scan audits.
type ScanRepository interface {
	Create(ctx context.Context, scan *Scan) error
}
