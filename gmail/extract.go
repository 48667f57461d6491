package gmail

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoDocument reports that a matched message carries neither a PDF
// attachment nor a recognizable download link.
var ErrNoDocument = errors.New("no pdf attachment or download link in message")

// ExtractDocument locates the press-review document on a message. A PDF
// attachment wins; otherwise the HTML body is scanned for a download link.
func (c *Client) ExtractDocument(msg *Message) (DocumentRef, error) {
	if msg.Attachment != nil {
		return DocumentRef{
			AttachmentID: msg.Attachment.AttachmentID,
			Filename:     msg.Attachment.Filename,
		}, nil
	}
	if msg.HTMLBody == "" {
		return DocumentRef{}, fmt.Errorf("message %s: %w", msg.ID, ErrNoDocument)
	}
	url, ok := ExtractPDFLink(msg.HTMLBody)
	if !ok {
		return DocumentRef{}, fmt.Errorf("message %s: %w", msg.ID, ErrNoDocument)
	}
	return DocumentRef{URL: url}, nil
}

// ExtractPDFLink scans an HTML body for the press-review download link.
// Telpress mails carry an anchor reading "clicca qui per scaricare il PDF";
// any href containing ".pdf" is accepted as a fallback.
func ExtractPDFLink(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(sel.Text())
		if strings.Contains(text, "clicca") && strings.Contains(text, "pdf") {
			found, _ = sel.Attr("href")
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if strings.Contains(strings.ToLower(href), ".pdf") {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}
