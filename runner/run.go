package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ancepiemonte/rassegna/drive"
	"github.com/ancepiemonte/rassegna/fetchpdf"
	"github.com/ancepiemonte/rassegna/gmail"
)

// MessageSource finds press-review emails and hands out their documents.
// Implemented by gmail.Client and by in-memory fakes in tests.
type MessageSource interface {
	FindOnDate(ctx context.Context, date time.Time) (*gmail.Message, error)
	FindLatest(ctx context.Context, days int) (*gmail.Message, error)
	ExtractDocument(msg *gmail.Message) (gmail.DocumentRef, error)
	AttachmentData(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// FileStore is the destination for uploaded press reviews. Implemented by
// drive.Store.
type FileStore interface {
	Exists(ctx context.Context, name string) (*drive.File, error)
	Put(ctx context.Context, name string, content []byte) (*drive.File, error)
	Remove(ctx context.Context, fileID string) error
}

// Fetcher resolves an extracted URL into document bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Status classifies the outcome of one target date.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusSkipped  Status = "skipped"
	StatusNotFound Status = "not-found"
	StatusFailed   Status = "failed"
)

// Result is the single reported outcome of one target date.
type Result struct {
	Date   time.Time
	Name   string
	Status Status
	Detail string
}

// Runner drives the per-date pipeline sequentially, one provider call at a
// time, so rate limits are respected and output stays ordered.
type Runner struct {
	source  MessageSource
	store   FileStore
	fetcher Fetcher
	log     *slog.Logger
}

// New wires the runner to its providers.
func New(source MessageSource, store FileStore, fetcher Fetcher, log *slog.Logger) *Runner {
	return &Runner{source: source, store: store, fetcher: fetcher, log: log}
}

// Run executes the plan and returns one Result per target. It only returns
// an error when the context is cancelled; per-date failures are recorded
// in their Result and never stop the remaining dates.
func (r *Runner) Run(ctx context.Context, plan *Plan) ([]Result, error) {
	if plan.LocalFile != "" {
		return []Result{r.uploadLocal(ctx, plan)}, nil
	}
	if plan.Latest {
		return []Result{r.processLatest(ctx, plan)}, nil
	}

	results := make([]Result, 0, len(plan.Dates))
	for _, date := range plan.Dates {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name := plan.OutName
		if name == "" {
			name = FileName(date)
		}
		res := r.processDate(ctx, date, name, plan.Force)
		r.log.Info("date processed", "date", date.Format("2006-01-02"), "status", res.Status, "detail", res.Detail)
		results = append(results, res)
	}
	return results, nil
}

// OK reports whether the run as a whole succeeded. Failures always fail
// the run; a missing press review only does when its date was requested
// explicitly.
func OK(results []Result, plan *Plan) bool {
	for _, res := range results {
		if res.Status == StatusFailed {
			return false
		}
		if res.Status == StatusNotFound && plan.Explicit {
			return false
		}
	}
	return true
}

func (r *Runner) processDate(ctx context.Context, date time.Time, name string, force bool) Result {
	res := Result{Date: date, Name: name}

	skip, err := r.checkExisting(ctx, name, force)
	if err != nil {
		return failed(res, err)
	}
	if skip {
		res.Status = StatusSkipped
		res.Detail = "already in drive"
		return res
	}

	msg, err := r.source.FindOnDate(ctx, date)
	if errors.Is(err, gmail.ErrNotFound) {
		res.Status = StatusNotFound
		res.Detail = "no press review email"
		return res
	}
	if err != nil {
		return failed(res, err)
	}

	return r.deliver(ctx, res, msg)
}

func (r *Runner) processLatest(ctx context.Context, plan *Plan) Result {
	res := Result{Date: plan.Dates[0]}

	msg, err := r.source.FindLatest(ctx, plan.LatestWindow)
	if errors.Is(err, gmail.ErrNotFound) {
		res.Name = FileName(res.Date)
		res.Status = StatusNotFound
		res.Detail = fmt.Sprintf("no press review email in the last %d days", plan.LatestWindow)
		return res
	}
	if err != nil {
		return failed(res, err)
	}

	// Name after the date spelled out in the subject; today's name is the
	// fallback when the phrase is missing.
	res.Name = plan.OutName
	if res.Name == "" {
		if fromSubject, ok := gmail.FileNameFromSubject(msg.Subject); ok {
			res.Name = fromSubject
		} else {
			res.Name = FileName(res.Date)
		}
	}

	skip, err := r.checkExisting(ctx, res.Name, plan.Force)
	if err != nil {
		return failed(res, err)
	}
	if skip {
		res.Status = StatusSkipped
		res.Detail = "already in drive"
		return res
	}

	return r.deliver(ctx, res, msg)
}

func (r *Runner) uploadLocal(ctx context.Context, plan *Plan) Result {
	res := Result{Date: plan.Dates[0], Name: plan.OutName}
	if res.Name == "" {
		res.Name = FileName(res.Date)
	}

	skip, err := r.checkExisting(ctx, res.Name, plan.Force)
	if err != nil {
		return failed(res, err)
	}
	if skip {
		res.Status = StatusSkipped
		res.Detail = "already in drive"
		return res
	}

	data, err := fetchpdf.ReadLocal(plan.LocalFile)
	if err != nil {
		return failed(res, err)
	}
	return r.put(ctx, res, data)
}

// deliver runs the extract-fetch-upload tail of the pipeline once a
// message has been found.
func (r *Runner) deliver(ctx context.Context, res Result, msg *gmail.Message) Result {
	doc, err := r.source.ExtractDocument(msg)
	if err != nil {
		return failed(res, err)
	}

	var data []byte
	if doc.AttachmentID != "" {
		data, err = r.source.AttachmentData(ctx, msg.ID, doc.AttachmentID)
	} else {
		data, err = r.fetcher.Fetch(ctx, doc.URL)
	}
	if err != nil {
		return failed(res, err)
	}

	return r.put(ctx, res, data)
}

func (r *Runner) put(ctx context.Context, res Result, data []byte) Result {
	f, err := r.store.Put(ctx, res.Name, data)
	if err != nil {
		return failed(res, err)
	}
	res.Status = StatusUploaded
	res.Detail = fmt.Sprintf("id=%s", f.ID)
	return res
}

// checkExisting reports whether the name is already taken and, under
// force, clears it. skip=true means the date is done without uploading.
func (r *Runner) checkExisting(ctx context.Context, name string, force bool) (skip bool, err error) {
	existing, err := r.store.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if !force {
		return true, nil
	}
	r.log.Info("removing existing file for overwrite", "name", name, "id", existing.ID)
	if err := r.store.Remove(ctx, existing.ID); err != nil {
		return false, err
	}
	return false, nil
}

func failed(res Result, err error) Result {
	res.Status = StatusFailed
	res.Detail = err.Error()
	return res
}
