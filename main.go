package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ancepiemonte/rassegna/config"
	"github.com/ancepiemonte/rassegna/distribute"
	"github.com/ancepiemonte/rassegna/drive"
	"github.com/ancepiemonte/rassegna/fetchpdf"
	"github.com/ancepiemonte/rassegna/gmail"
	"github.com/ancepiemonte/rassegna/googleauth"
	"github.com/ancepiemonte/rassegna/runner"
)

var syncOpts runner.Options

var rootCmd = &cobra.Command{
	Use:   "rassegna",
	Short: "Sync the daily Telpress press review from Gmail to Drive",
	Long: `Finds the daily press-review email, extracts the PDF (attachment or
download link) and uploads it to a Drive folder as YYYY.MM.DD.pdf,
skipping dates already uploaded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Mail a press-review PDF to the notification list in batches",
	RunE:  runSend,
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the one-time interactive Gmail authorization",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return googleauth.Authorize(cmd.Context(), cfg)
	},
}

var sendAttachment string

func init() {
	rootCmd.Flags().IntVar(&syncOpts.Days, "days", 3, "process the most recent N days, newest first")
	rootCmd.Flags().StringVar(&syncOpts.On, "on", "", "process exactly one date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&syncOpts.Range, "range", "", "process an inclusive date range START:END")
	rootCmd.Flags().StringVar(&syncOpts.File, "file", "", "upload a local PDF instead of searching the mailbox (requires --on)")
	rootCmd.Flags().StringVar(&syncOpts.Name, "name", "", "override the destination filename (single date only)")
	rootCmd.Flags().BoolVar(&syncOpts.Latest, "latest", false, "upload only the most recent press review within the --days window")
	rootCmd.Flags().BoolVar(&syncOpts.Force, "force", false, "overwrite an existing destination file instead of skipping")

	sendCmd.Flags().StringVar(&sendAttachment, "attachment", "rassegna.pdf", "PDF to distribute")

	rootCmd.AddCommand(sendCmd, authorizeCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	plan, err := runner.BuildPlan(syncOpts, time.Now().In(loc))
	if err != nil {
		return err
	}

	driveHTTP, err := googleauth.DriveHTTPClient(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := drive.NewStore(ctx, driveHTTP, cfg.DriveFolderID, log)
	if err != nil {
		return err
	}

	// Local-file mode never touches the mailbox, so Gmail credentials are
	// only resolved when a search will happen.
	var source runner.MessageSource
	if plan.LocalFile == "" {
		gmailHTTP, err := googleauth.GmailHTTPClient(ctx, cfg)
		if err != nil {
			return err
		}
		source, err = gmail.NewClient(ctx, gmailHTTP, cfg.SenderFilter, cfg.SubjectPrefix, log)
		if err != nil {
			return err
		}
	}

	fetcher := fetchpdf.New(&http.Client{Timeout: 60 * time.Second})

	results, err := runner.New(source, store, fetcher, log).Run(ctx, plan)
	if err != nil {
		return err
	}

	printReport(results)
	if !runner.OK(results, plan) {
		return fmt.Errorf("run finished with failures")
	}
	return nil
}

func runSend(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateSMTP(); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	subject := "Rassegna Stampa " + cfg.SMTP.SenderName
	body := "In allegato la rassegna stampa odierna."
	return distribute.NewSender(cfg, log).Send(cmd.Context(), sendAttachment, subject, body)
}

// printReport writes the per-date outcomes and the aggregate counts to
// stdout; logs go to stderr so the report stays machine-readable.
func printReport(results []runner.Result) {
	counts := map[runner.Status]int{}
	for _, res := range results {
		fmt.Printf("%s  %-11s %s  %s\n", res.Date.Format("2006-01-02"), res.Status, res.Name, res.Detail)
		counts[res.Status]++
	}
	fmt.Printf("uploaded %d, skipped %d, not found %d, failed %d\n",
		counts[runner.StatusUploaded], counts[runner.StatusSkipped],
		counts[runner.StatusNotFound], counts[runner.StatusFailed])
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
