package verification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
)

// Request identifies one verification attempt.
type Request struct {
	Identity      string
	UserID        string
	Credential    mailbox.Credential
	TransactionID string
}

// Verifier checks a claimed transaction id against the most recent mailbox messages.
type Verifier struct {
	fetcher mailbox.Fetcher
	scans   mailbox.ScanRepository
	window  int
	logger  zerolog.Logger
}

// NewVerifier creates a verifier scanning the given number of recent messages.
func NewVerifier(fetcher mailbox.Fetcher, scans mailbox.ScanRepository, window int, logger zerolog.Logger) *Verifier {
	if window <= 0 {
		window = mailbox.DefaultWindow
	}
	return &Verifier{
		fetcher: fetcher,
		scans:   scans,
		window:  window,
		logger:  logger.With().Str("service", "verification").Logger(),
	}
}

// Verify reports whether the transaction id appears in a scanned body.
// Failures are logged and reported as not found.
func (v *Verifier) Verify(ctx context.Context, req Request) bool {
	log := v.logger.With().
		Str("identity", req.Identity).
		Str("user_id", req.UserID).
		Str("transaction_id", req.TransactionID).
		Logger()

	scan := &mailbox.Scan{
		ScanID:        uuid.New(),
		Identity:      req.Identity,
		UserID:        req.UserID,
		TransactionID: req.TransactionID,
		Messages:      []mailbox.Summary{},
		ScannedAt:     time.Now().UTC(),
	}

	switch {
	case req.TransactionID == "":
		fail(scan, "transaction id is empty")
	case !req.Credential.Valid():
		fail(scan, "mailbox credential is incomplete")
	default:
		messages, err := v.fetcher.Recent(ctx, req.Credential, v.window)
		if err != nil {
			fail(scan, err.Error())
			break
		}
		if len(messages) > v.window {
			messages = messages[len(messages)-v.window:]
		}
		scan.Messages = messages
		scan.Found = match(messages, req.TransactionID)
	}

	if scan.Error != nil {
		log.Error().Str("reason", *scan.Error).Msg("mailbox scan failed")
	} else {
		log.Info().Bool("found", scan.Found).Int("scanned", len(scan.Messages)).Msg("mailbox scanned")
	}

	if v.scans != nil {
		if err := v.scans.Create(ctx, scan); err != nil {
			log.Warn().Err(err).Msg("failed to persist scan audit")
		}
	}
	return scan.Found
}

func fail(scan *mailbox.Scan, reason string) {
	scan.Found = false
	scan.Error = &reason
}

// match stops at the first body containing id.
func match(messages []mailbox.Summary, id string) bool {
	for _, m := range messages {
		if strings.Contains(m.Body, id) {
			return true
		}
	}
	return false
}
