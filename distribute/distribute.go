// Package distribute sends a press-review PDF to a recipient list over
// SMTP, in small BCC batches so provider sending limits are respected.
package distribute

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/ancepiemonte/rassegna/config"
)

const (
	// Aruba rejects larger BCC blocks, so one recipient per message.
	batchSize  = 1
	batchDelay = 5 * time.Second
	attempts   = 3
	retryDelay = 30 * time.Second
)

// Sender mails the attachment to every recipient in the configured list.
type Sender struct {
	cfg *config.Config
	log *slog.Logger
}

// NewSender creates a Sender. The SMTP settings must already be validated.
func NewSender(cfg *config.Config, log *slog.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// Send loads the recipient list and delivers the attachment batch by
// batch. A batch gets up to three delivery attempts; a batch that still
// fails is reported but does not stop the remaining ones.
func (s *Sender) Send(ctx context.Context, attachmentPath, subject, body string) error {
	recipients, err := LoadRecipients(s.cfg.SMTP.RecipientsFile)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients in %s", s.cfg.SMTP.RecipientsFile)
	}
	s.log.Info("sending press review", "recipients", len(recipients), "attachment", attachmentPath)

	batches := Batches(recipients, batchSize)
	var failedBatches int
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.sendBatch(ctx, batch, attachmentPath, subject, body); err != nil {
			s.log.Error("batch failed after all attempts", "batch", i+1, "recipients", batch, "error", err)
			failedBatches++
		} else {
			s.log.Info("batch sent", "batch", i+1, "of", len(batches))
		}
		if i+1 < len(batches) {
			if err := wait(ctx, batchDelay); err != nil {
				return err
			}
		}
	}

	if failedBatches > 0 {
		return fmt.Errorf("%d of %d batches failed", failedBatches, len(batches))
	}
	return nil
}

func (s *Sender) sendBatch(ctx context.Context, batch []string, attachmentPath, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.SMTP.SenderName, s.cfg.SMTP.User); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	// Delivered to self, recipients go in BCC.
	if err := msg.To(s.cfg.SMTP.User); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	if err := msg.Bcc(batch...); err != nil {
		return fmt.Errorf("set bcc: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AttachFile(attachmentPath)

	client, err := mail.NewClient(s.cfg.SMTP.Host,
		mail.WithPort(s.cfg.SMTP.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.SMTP.User),
		mail.WithPassword(s.cfg.SMTP.Pass),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = client.DialAndSendWithContext(ctx, msg)
		if lastErr == nil {
			return nil
		}
		s.log.Warn("delivery attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < attempts {
			if err := wait(ctx, retryDelay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// wait pauses for d unless the context is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadRecipients reads one address per line, skipping comments and lines
// without an @.
func LoadRecipients(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients file: %w", err)
	}
	defer f.Close()

	var recipients []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "@") {
			continue
		}
		recipients = append(recipients, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recipients file: %w", err)
	}
	return recipients, nil
}

// Batches splits recipients into slices of at most size.
func Batches(recipients []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var batches [][]string
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}
