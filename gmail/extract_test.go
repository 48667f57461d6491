package gmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	gapi "google.golang.org/api/gmail/v1"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractPDFLink(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   string
		wantOK bool
	}{
		{
			name:   "telpress download anchor",
			html:   `<html><body><p>Gentile abbonato,</p><a href="https://cdn.telpress.it/r/abc123">Clicca qui per scaricare il PDF</a></body></html>`,
			want:   "https://cdn.telpress.it/r/abc123",
			wantOK: true,
		},
		{
			name: "anchor text wins over pdf href",
			html: `<a href="https://example.com/other.pdf">altro</a>` +
				`<a href="https://cdn.telpress.it/r/abc">clicca per il PDF</a>`,
			want:   "https://cdn.telpress.it/r/abc",
			wantOK: true,
		},
		{
			name:   "fallback to pdf href",
			html:   `<a href="https://example.com/rassegna.PDF">scarica</a>`,
			want:   "https://example.com/rassegna.PDF",
			wantOK: true,
		},
		{name: "no links", html: `<p>nessun allegato oggi</p>`},
		{name: "links without pdf", html: `<a href="https://example.com/home">home</a>`},
		{name: "empty body", html: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPDFLink(tt.html)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDocument(t *testing.T) {
	c := &Client{}

	t.Run("attachment wins over body link", func(t *testing.T) {
		msg := &Message{
			ID:         "m1",
			Attachment: &Attachment{AttachmentID: "att-1", Filename: "rassegna.pdf"},
			HTMLBody:   `<a href="https://example.com/doc.pdf">clicca pdf</a>`,
		}
		doc, err := c.ExtractDocument(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.AttachmentID != "att-1" || doc.URL != "" {
			t.Errorf("doc = %+v, want attachment ref", doc)
		}
	})

	t.Run("link when no attachment", func(t *testing.T) {
		msg := &Message{ID: "m2", HTMLBody: `<a href="https://example.com/doc.pdf">clicca pdf</a>`}
		doc, err := c.ExtractDocument(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.URL != "https://example.com/doc.pdf" {
			t.Errorf("url = %q", doc.URL)
		}
	})

	t.Run("neither is an extraction error", func(t *testing.T) {
		msg := &Message{ID: "m3", HTMLBody: `<p>solo testo</p>`}
		if _, err := c.ExtractDocument(msg); !errors.Is(err, ErrNoDocument) {
			t.Errorf("err = %v, want ErrNoDocument", err)
		}
	})

	t.Run("empty message is an extraction error", func(t *testing.T) {
		if _, err := c.ExtractDocument(&Message{ID: "m4"}); !errors.Is(err, ErrNoDocument) {
			t.Errorf("err = %v, want ErrNoDocument", err)
		}
	})
}

func TestParseMessage(t *testing.T) {
	html := `<a href="https://cdn.telpress.it/r/abc">clicca pdf</a>`
	msg := &gapi.Message{
		Id:           "m1",
		InternalDate: 1756166400000,
		Payload: &gapi.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gapi.MessagePartHeader{
				{Name: "Subject", Value: "Rassegna STAMPA del 26 agosto 2025"},
				{Name: "From", Value: "rassegnastampa@telpress.it"},
			},
			Parts: []*gapi.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gapi.MessagePart{
						{MimeType: "text/plain", Body: &gapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("testo"))}},
						{MimeType: "text/html", Body: &gapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(html))}},
					},
				},
				{
					MimeType: "application/pdf",
					Filename: "rassegna.pdf",
					Body:     &gapi.MessagePartBody{AttachmentId: "att-9", Size: 12345},
				},
			},
		},
	}

	got := parseMessage(msg, quietLogger())

	if got.Subject != "Rassegna STAMPA del 26 agosto 2025" {
		t.Errorf("subject = %q", got.Subject)
	}
	if got.From != "rassegnastampa@telpress.it" {
		t.Errorf("from = %q", got.From)
	}
	if got.HTMLBody != html {
		t.Errorf("html body = %q, want %q", got.HTMLBody, html)
	}
	if got.Attachment == nil || got.Attachment.AttachmentID != "att-9" {
		t.Errorf("attachment = %+v, want att-9", got.Attachment)
	}
	if got.InternalDate != 1756166400000 {
		t.Errorf("internal date = %d", got.InternalDate)
	}
}

func TestParseMessagePdfByFilenameOnly(t *testing.T) {
	msg := &gapi.Message{
		Id: "m2",
		Payload: &gapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gapi.MessagePart{
				{
					MimeType: "application/octet-stream",
					Filename: "Rassegna.PDF",
					Body:     &gapi.MessagePartBody{AttachmentId: "att-1"},
				},
			},
		},
	}
	got := parseMessage(msg, quietLogger())
	if got.Attachment == nil {
		t.Fatal("attachment not detected from .pdf filename")
	}
}

func TestParseMessageBadBodyWarnsInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	msg := &gapi.Message{
		Id: "m3",
		Payload: &gapi.MessagePart{
			MimeType: "text/html",
			Body:     &gapi.MessagePartBody{Data: "!!! not base64 !!!"},
		},
	}
	got := parseMessage(msg, log)

	if got.HTMLBody != "" {
		t.Errorf("html body = %q, want empty for undecodable part", got.HTMLBody)
	}
	logged := buf.String()
	if !strings.Contains(logged, "could not decode html body part") || !strings.Contains(logged, "m3") {
		t.Errorf("decode warning not routed to the injected logger, got: %q", logged)
	}
}
