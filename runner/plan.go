// Package runner plans the target dates of an invocation and drives the
// per-date find-extract-fetch-upload pipeline over the provider interfaces.
package runner

import (
	"fmt"
	"strings"
	"time"
)

// Options mirrors the CLI flags of a sync invocation.
type Options struct {
	Days   int
	On     string
	Range  string
	File   string
	Name   string
	Latest bool
	Force  bool
}

// Plan is the resolved set of work for one invocation.
type Plan struct {
	// Dates to process, in processing order. Lookback runs newest first,
	// ranges run chronologically. In latest mode it holds today only, as
	// the naming fallback.
	Dates []time.Time

	// Explicit marks dates the caller asked for by name (--on, --range);
	// a missing press review then counts as a failure rather than a skip.
	Explicit bool

	Latest       bool
	LatestWindow int

	LocalFile string
	OutName   string
	Force     bool
}

// BuildPlan validates the flag combination and expands it into target
// dates. now supplies "today" and the timezone every date is built in.
func BuildPlan(opts Options, now time.Time) (*Plan, error) {
	if opts.On != "" && opts.Range != "" {
		return nil, fmt.Errorf("--on and --range are mutually exclusive")
	}
	if opts.Latest && (opts.On != "" || opts.Range != "") {
		return nil, fmt.Errorf("--latest cannot be combined with --on or --range")
	}
	if opts.File != "" && opts.On == "" {
		return nil, fmt.Errorf("--file requires --on (single date)")
	}
	if opts.Name != "" && opts.On == "" && !opts.Latest {
		return nil, fmt.Errorf("--name requires --on or --latest (single date)")
	}

	plan := &Plan{Force: opts.Force, OutName: opts.Name, LocalFile: opts.File}
	loc := now.Location()

	switch {
	case opts.On != "":
		d, err := parseDate(opts.On, loc)
		if err != nil {
			return nil, fmt.Errorf("--on: %w", err)
		}
		plan.Dates = []time.Time{d}
		plan.Explicit = true

	case opts.Range != "":
		start, end, err := parseRange(opts.Range, loc)
		if err != nil {
			return nil, err
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			plan.Dates = append(plan.Dates, d)
		}
		plan.Explicit = true

	default:
		if opts.Days < 1 {
			return nil, fmt.Errorf("--days must be a positive day count")
		}
		today := midnight(now)
		if opts.Latest {
			plan.Latest = true
			plan.LatestWindow = opts.Days
			plan.Dates = []time.Time{today}
			break
		}
		for i := 0; i < opts.Days; i++ {
			plan.Dates = append(plan.Dates, today.AddDate(0, 0, -i))
		}
	}

	return plan, nil
}

// FileName maps a date to the deterministic destination name. This is the
// deduplication key, so the format is fixed: zero-padded YYYY.MM.DD.pdf.
func FileName(d time.Time) string {
	return fmt.Sprintf("%04d.%02d.%02d.pdf", d.Year(), d.Month(), d.Day())
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

func parseRange(s string, loc *time.Location) (start, end time.Time, err error) {
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return start, end, fmt.Errorf("--range wants START:END with ISO dates, e.g. 2025-08-20:2025-08-26")
	}
	if start, err = parseDate(startStr, loc); err != nil {
		return start, end, fmt.Errorf("--range: %w", err)
	}
	if end, err = parseDate(endStr, loc); err != nil {
		return start, end, fmt.Errorf("--range: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--range END must be >= START")
	}
	return start, end, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
