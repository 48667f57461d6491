package fetchpdf

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var pdfBody = []byte("%PDF-1.4 contenuto rassegna")

// mockTransport serves a scripted sequence of responses, one per call.
type mockTransport struct {
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	status      int
	contentType string
	body        []byte
	err         error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.calls >= len(m.responses) {
		panic("mockTransport: more calls than scripted responses")
	}
	r := m.responses[m.calls]
	m.calls++
	if r.err != nil {
		return nil, r.err
	}
	header := http.Header{}
	if r.contentType != "" {
		header.Set("Content-Type", r.contentType)
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(r.body)),
	}, nil
}

// sizedPDF builds a syntactically valid PDF body of exactly n bytes.
func sizedPDF(n int) []byte {
	body := make([]byte, n)
	copy(body, "%PDF-1.4 ")
	return body
}

func oversizePDF() []byte {
	return sizedPDF(maxSize + 1024)
}

func newTestFetcher(transport *mockTransport) *Fetcher {
	f := New(transport)
	f.retryDelay = time.Millisecond
	return f
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name      string
		responses []mockResponse
		want      []byte
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "pdf by content type",
			responses: []mockResponse{{status: 200, contentType: "application/pdf", body: pdfBody}},
			want:      pdfBody,
			wantCalls: 1,
		},
		{
			name:      "pdf by magic bytes despite generic content type",
			responses: []mockResponse{{status: 200, contentType: "application/octet-stream", body: pdfBody}},
			want:      pdfBody,
			wantCalls: 1,
		},
		{
			name: "transient network error retried once",
			responses: []mockResponse{
				{err: io.ErrUnexpectedEOF},
				{status: 200, contentType: "application/pdf", body: pdfBody},
			},
			want:      pdfBody,
			wantCalls: 2,
		},
		{
			name: "server error retried once",
			responses: []mockResponse{
				{status: 503, body: []byte("busy")},
				{status: 200, contentType: "application/pdf", body: pdfBody},
			},
			want:      pdfBody,
			wantCalls: 2,
		},
		{
			name: "persistent network error gives up after one retry",
			responses: []mockResponse{
				{err: io.ErrUnexpectedEOF},
				{err: io.ErrUnexpectedEOF},
			},
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name:      "404 is permanent, no retry",
			responses: []mockResponse{{status: 404, body: []byte("gone")}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "html error page is not a pdf",
			responses: []mockResponse{{status: 200, contentType: "text/html", body: []byte("<html>login</html>")}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "empty body rejected",
			responses: []mockResponse{{status: 200, contentType: "application/pdf", body: nil}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "oversize body rejected not truncated",
			responses: []mockResponse{{status: 200, contentType: "application/pdf", body: oversizePDF()}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "body at the cap accepted",
			responses: []mockResponse{{status: 200, contentType: "application/pdf", body: sizedPDF(maxSize)}},
			want:      sizedPDF(maxSize),
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{responses: tt.responses}
			got, err := newTestFetcher(transport).Fetch(context.Background(), "https://cdn.telpress.it/doc.pdf")

			if transport.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", transport.calls, tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.pdf")
	if err := os.WriteFile(path, pdfBody, 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	got, err := ReadLocal(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(pdfBody, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadLocal(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing path, got nil")
	}
}
