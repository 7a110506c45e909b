// Package imap reads the most recent messages of a mailbox over IMAPS.
package imap

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
)

const inbox = "INBOX"

// Fetcher implements mailbox.Fetcher against an IMAPS server.
type Fetcher struct {
	addr        string
	dialTimeout time.Duration
	logger      zerolog.Logger
}

// NewFetcher creates a fetcher for addr (host:port).
func NewFetcher(addr string, dialTimeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		addr:        addr,
		dialTimeout: dialTimeout,
		logger:      logger.With().Str("component", "imap").Logger(),
	}
}

// Recent returns up to limit of the newest INBOX messages, oldest first. The mailbox is opened read-only
// and bodies are fetched with PEEK so nothing is marked as seen.
func (f *Fetcher) Recent(ctx context.Context, cred mailbox.Credential, limit int) ([]mailbox.Summary, error) {
	if limit <= 0 {
		return nil, nil
	}
	dialer := &net.Dialer{Timeout: f.dialTimeout}
	c, err := client.DialWithDialerTLS(dialer, f.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.addr, err)
	}
	c.Timeout = f.dialTimeout

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-finished:
		}
	}()
	defer func() {
		if err := c.Logout(); err != nil {
			f.logger.Debug().Err(err).Msg("imap logout failed")
		}
	}()

	if err := c.Login(cred.Address, cred.AppPassword); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	mbox, err := c.Select(inbox, true)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", inbox, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqset := new(goimap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchEnvelope, section.FetchItem()}
	messages := make(chan *goimap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	type fetched struct {
		seq     uint32
		summary mailbox.Summary
	}
	var out []fetched
	for msg := range messages {
		summary := f.summarize(msg, section)
		out = append(out, fetched{seq: msg.SeqNum, summary: summary})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	summaries := make([]mailbox.Summary, len(out))
	for i, m := range out {
		summaries[i] = m.summary
	}
	return summaries, nil
}

// summarize never fails: an unreadable body still yields the envelope fields.
func (f *Fetcher) summarize(msg *goimap.Message, section *goimap.BodySectionName) mailbox.Summary {
	var s mailbox.Summary
	if body := msg.GetBody(section); body != nil {
		parsed, err := Summarize(body)
		if err != nil {
			f.logger.Warn().Err(err).Uint32("seq", msg.SeqNum).Msg("failed to decode message body")
		}
		s = parsed
	}
	if msg.Envelope != nil {
		if s.Subject == "" {
			s.Subject = msg.Envelope.Subject
		}
		if s.From == "" && len(msg.Envelope.From) > 0 {
			s.From = msg.Envelope.From[0].Address()
		}
	}
	return s
}

var _ mailbox.Fetcher = (*Fetcher)(nil)
