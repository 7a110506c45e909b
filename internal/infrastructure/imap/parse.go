package imap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
)

// maxPartSize bounds how much of a single MIME part is read.
const maxPartSize = 1 << 20

// Summarize decodes one RFC 5322 message into subject, sender and text body.
// HTML parts are rendered to text and appended after any plain text parts.
func Summarize(r io.Reader) (mailbox.Summary, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return mailbox.Summary{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var s mailbox.Summary
	if subject, err := mr.Header.Subject(); err == nil {
		s.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		s.From = from[0].Address
	} else {
		s.From = mr.Header.Get("From")
	}

	var plain, rendered []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return s, fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(io.LimitReader(p.Body, maxPartSize))
		if err != nil {
			return s, fmt.Errorf("read body: %w", err)
		}
		switch contentType {
		case "text/html":
			rendered = append(rendered, RenderHTML(body))
		case "", "text/plain":
			plain = append(plain, string(body))
		}
	}
	s.Body = strings.TrimSpace(strings.Join(append(plain, rendered...), "\n"))
	return s, nil
}

// RenderHTML extracts visible text from an HTML document.
func RenderHTML(doc []byte) string {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "tr", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "td", "tr", "li":
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
