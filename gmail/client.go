// Package gmail finds press-review emails and extracts the document they
// carry, either as a PDF attachment or as a download link in the HTML body.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// ErrNotFound reports that no message matched the search. Absence of a
// press review on a date is an expected outcome, not a failure.
var ErrNotFound = errors.New("no matching message")

// Client wraps the Gmail API with the two searches the pipeline needs.
type Client struct {
	srv           *gmail.Service
	sender        string
	subjectPrefix string
	log           *slog.Logger
}

// NewClient builds a Client on top of an authorized HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, sender, subjectPrefix string, log *slog.Logger) (*Client, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{srv: srv, sender: sender, subjectPrefix: subjectPrefix, log: log}, nil
}

// FindOnDate searches for the press-review email of a specific date. The
// subject carries the date spelled out in Italian, so the query matches on
// that phrase with a ±7 day window to cut noise; among several candidates
// the one whose timestamp sits closest to the date's midnight wins.
func (c *Client) FindOnDate(ctx context.Context, date time.Time) (*Message, error) {
	after := date.AddDate(0, 0, -7).Format("2006/01/02")
	before := date.AddDate(0, 0, 8).Format("2006/01/02")
	q := fmt.Sprintf(`from:%s subject:"%s" subject:"%s" after:%s before:%s`,
		c.sender, c.subjectPrefix, SubjectDatePhrase(date), after, before)

	c.log.Debug("searching mailbox", "query", q)
	ids, err := c.list(ctx, q, 5)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	target := date.UnixMilli()
	var best *Message
	var bestDiff int64
	for _, id := range ids {
		msg, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		diff := msg.InternalDate - target
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = msg, diff
		}
	}
	return best, nil
}

// FindLatest returns the most recent press-review email within the last
// `days` days, or ErrNotFound.
func (c *Client) FindLatest(ctx context.Context, days int) (*Message, error) {
	q := fmt.Sprintf(`from:%s subject:"%s" newer_than:%dd`, c.sender, c.subjectPrefix, days)

	c.log.Debug("searching mailbox", "query", q)
	ids, err := c.list(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	var best *Message
	for _, id := range ids {
		msg, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if best == nil || msg.InternalDate > best.InternalDate {
			best = msg
		}
	}
	return best, nil
}

// AttachmentData fetches and decodes the bytes of a message attachment.
func (c *Client) AttachmentData(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := c.srv.Users.Messages.Attachments.Get(user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	data, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment data: %w", err)
	}
	return data, nil
}

func (c *Client) list(ctx context.Context, q string, max int64) ([]string, error) {
	res, err := c.srv.Users.Messages.List(user).Q(q).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, id string) (*Message, error) {
	full, err := c.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return parseMessage(full, c.log), nil
}

func parseMessage(msg *gmail.Message, log *slog.Logger) *Message {
	m := &Message{ID: msg.Id, InternalDate: msg.InternalDate}
	if msg.Payload == nil {
		return m
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			m.Subject = header.Value
		case "From":
			m.From = header.Value
		}
	}
	walkParts(msg.Payload, m, log)
	return m
}

// walkParts descends the MIME tree collecting the HTML body and the first
// PDF attachment.
func walkParts(p *gmail.MessagePart, m *Message, log *slog.Logger) {
	if m.Attachment == nil && isPDFPart(p) {
		m.Attachment = &Attachment{
			Filename:     p.Filename,
			MimeType:     p.MimeType,
			AttachmentID: p.Body.AttachmentId,
			Size:         p.Body.Size,
		}
	}
	if m.HTMLBody == "" && p.MimeType == "text/html" && p.Body != nil && p.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(p.Body.Data)
		if err == nil {
			m.HTMLBody = string(data)
		} else {
			log.Warn("could not decode html body part", "message", m.ID, "error", err)
		}
	}
	for _, part := range p.Parts {
		walkParts(part, m, log)
	}
}

func isPDFPart(p *gmail.MessagePart) bool {
	if p.Body == nil || p.Body.AttachmentId == "" {
		return false
	}
	return p.MimeType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(p.Filename), ".pdf")
}
