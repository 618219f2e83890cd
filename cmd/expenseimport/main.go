package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/config"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/output"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/pipeline"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/scanner"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/server"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/ui"
)

const (
	version = "0.1.0"
	// localUser owns expenses imported from the command line.
	localUser = "local"
)

const usage = `expenseimport - Expense file importer

Usage:
  expenseimport [flags]          parse (and optionally commit) expense files
  expenseimport export [flags]   export stored expenses as CSV or HTML
  expenseimport serve [flags]    run the HTTP API

Examples:
  # Review a bank export without writing anything
  expenseimport -input ~/Downloads/statement.csv -categorize

  # Import a folder of statements, skipping anything already imported
  expenseimport -input ~/statements -categorize -commit -state state.json

  # Printable report of everything stored
  expenseimport export -format html -output report.html

`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(ctx, args[1:])
		case "export":
			return runExport(ctx, args[1:])
		}
	}
	return runImport(ctx, args)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	return fs
}

// loadConfig reads the config file and applies the log level.
func loadConfig(path string, verbose bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return cfg, nil
}

// FileReport is the CLI result for one input file.
type FileReport struct {
	Path        string                 `json:"path"`
	Institution string                 `json:"institution,omitempty"`
	Review      *pipeline.Review       `json:"review,omitempty"`
	Commit      *pipeline.CommitResult `json:"commit,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Report is the CLI result for a whole run.
type Report struct {
	Files     []FileReport       `json:"files"`
	Committed bool               `json:"committed"`
	Totals    domain.ImportStats `json:"totals"`
}

func runImport(ctx context.Context, args []string) error {
	fs := newFlagSet("expenseimport")
	var (
		versionFlag    = fs.Bool("version", false, "Show version")
		configFile     = fs.String("config", "", "Config file (default: ./expenseimport.yaml if present)")
		input          = fs.String("input", "", "Input file or directory (required)")
		categorizeFlag = fs.Bool("categorize", false, "Categorize expenses")
		rulesFile      = fs.String("rules", "", "Category rules file (default: embedded rules)")
		stateFile      = fs.String("state", "", "Fingerprint state file for cross-run deduplication")
		commit         = fs.Bool("commit", false, "Store parsed expenses")
		skipDuplicates = fs.Bool("skip-duplicates", true, "Leave out duplicates when committing")
		dbPath         = fs.String("db", "", "SQLite database path (overrides config)")
		currency       = fs.String("currency", "", "Currency for imported expenses (overrides config)")
		outputFile     = fs.String("output", "", "Output JSON file (default: stdout)")
		user           = fs.String("user", localUser, "User the expenses belong to")
		verbose        = fs.Bool("verbose", false, "Show detailed logs")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *versionFlag {
		fmt.Printf("expenseimport version %s\n", version)
		return nil
	}
	if *input == "" {
		fs.Usage()
		return fmt.Errorf("-input flag is required")
	}

	cfg, err := loadConfig(*configFile, *verbose)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Store.Backend = config.StoreSQLite
		cfg.Store.Path = *dbPath
	}
	if *currency != "" {
		cfg.Currency = strings.ToUpper(*currency)
	}
	if *rulesFile != "" {
		cfg.Categorizer.RulesFile = *rulesFile
	}
	if *stateFile != "" {
		cfg.State.Path = *stateFile
	}

	steps := 3
	if *commit {
		steps = 4
	}
	ui.Header("Importing Expenses")

	ui.Step(1, steps, "Scanning input")
	files, err := scanner.New(*input).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", *input, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no importable files found in %s\n\nSupported formats: CSV, Excel (.xlsx/.xls), PDF, JSON, OFX/QFX", *input)
	}
	ui.Success(fmt.Sprintf("Found %d file(s)", len(files)))

	ui.Step(2, steps, "Loading components")
	importer, closeBackend, err := newImporter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	report := Report{Committed: *commit, Files: make([]FileReport, 0, len(files))}
	ui.Step(3, steps, "Parsing files")
	for _, file := range files {
		fr := FileReport{Path: file.Path, Institution: file.Institution}
		f, err := parser.OpenFile(file.Path)
		if err != nil {
			return err
		}

		review, err := importer.Parse(ctx, *user, f, pipeline.ParseOptions{Categorize: *categorizeFlag})
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", file.Path, err)
		}
		fr.Review = review
		report.Totals.Parsed += len(review.Records)
		summarizeReview(review)

		report.Files = append(report.Files, fr)
	}

	// A failed commit still writes the report.
	var commitErr error
	if *commit {
		ui.Step(4, steps, "Committing expenses")
		for i := range report.Files {
			fr := &report.Files[i]
			result, err := importer.Commit(ctx, *user, fr.Review.SessionID, pipeline.CommitOptions{SkipDuplicates: *skipDuplicates})
			if result != nil {
				fr.Commit = result
				report.Totals.Imported += result.Stats.Imported
				report.Totals.Duplicates += result.Stats.Duplicates
				report.Totals.Failed += result.Stats.Failed
			}
			if err != nil {
				fr.Error = err.Error()
				commitErr = fmt.Errorf("commit of %s stopped: %w", fr.Path, err)
				break
			}
			ui.Progress(i+1, len(report.Files), "Files")
		}
		if commitErr == nil {
			ui.Success(fmt.Sprintf("Imported %d, skipped %d duplicate(s), %d failed",
				report.Totals.Imported, report.Totals.Duplicates, report.Totals.Failed))
		}
	}

	if err := output.WriteResultToFile(report, *outputFile); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if commitErr != nil {
		return commitErr
	}
	if *outputFile != "" {
		ui.Success(fmt.Sprintf("Output written to %s", *outputFile))
	}
	return nil
}

// newImporter opens the configured backend and builds the pipeline.
func newImporter(ctx context.Context, cfg config.Config) (*pipeline.Importer, func(), error) {
	reg, err := server.NewRegistry(cfg.PDF)
	if err != nil {
		return nil, nil, err
	}
	categorizer, err := server.NewCategorizer(cfg.Categorizer)
	if err != nil {
		return nil, nil, err
	}

	var state *dedup.State
	if cfg.State.Path != "" {
		state, err = dedup.LoadOrNewState(cfg.State.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load state file %q: %w\n\nThe file exists but cannot be read. Deleting it means every record is treated as new.", cfg.State.Path, err)
		}
		ui.Info(fmt.Sprintf("Deduplication state: %s (%d fingerprints)", cfg.State.Path, len(state.Fingerprints)))
	}

	backend, err := server.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	closeBackend := func() {
		if err := backend.Close(); err != nil {
			log.Warn("failed to close store", "err", err)
		}
	}

	pcfg := pipeline.Config{
		Registry:    reg,
		Store:       backend.Expenses,
		Categorizer: categorizer,
		State:       state,
		StatePath:   cfg.State.Path,
		Currency:    cfg.Currency,
	}
	if backend.Firebase != nil {
		pcfg.Sessions = backend.Firebase
	}
	im, err := pipeline.New(pcfg)
	if err != nil {
		closeBackend()
		return nil, nil, err
	}
	return im, closeBackend, nil
}

func summarizeReview(r *pipeline.Review) {
	var duplicates, imported, warnings int
	for _, rec := range r.Records {
		if len(rec.Duplicates) > 0 {
			duplicates++
		}
		if rec.Imported {
			imported++
		}
		warnings += len(rec.Warnings)
	}

	ui.Success(fmt.Sprintf("%s: %d expense(s) from %d row(s)", r.FileName, len(r.Records), r.Result.TotalRows))
	for i, e := range r.Result.Errors {
		if i == 5 {
			ui.Detail(fmt.Sprintf("... and %d more", len(r.Result.Errors)-5))
			break
		}
		if e.Row > 0 {
			ui.Detail(fmt.Sprintf("row %d: %s", e.Row, e.Message))
		} else {
			ui.Detail(e.Message)
		}
	}
	if duplicates > 0 {
		ui.Warning(fmt.Sprintf("%d possible duplicate(s) of stored expenses", duplicates))
	}
	if imported > 0 {
		ui.Warning(fmt.Sprintf("%d already imported by an earlier run", imported))
	}
	if warnings > 0 {
		ui.Warning(fmt.Sprintf("%d amount warning(s)", warnings))
	}
	if r.CategorizeError != "" {
		ui.Warning("Categorization incomplete: " + r.CategorizeError)
	}
}

func runExport(ctx context.Context, args []string) error {
	fs := newFlagSet("expenseimport export")
	var (
		configFile = fs.String("config", "", "Config file")
		dbPath     = fs.String("db", "", "SQLite database path (overrides config)")
		format     = fs.String("format", "csv", "Export format: csv or html")
		outputFile = fs.String("output", "", "Output file (default: stdout)")
		user       = fs.String("user", localUser, "User whose expenses to export")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile, false)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Store.Backend = config.StoreSQLite
		cfg.Store.Path = *dbPath
	}

	backend, err := server.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer backend.Close()

	expenses, err := backend.Expenses.ListExpenses(ctx, *user)
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}

	var w io.Writer = os.Stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", *outputFile, err)
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(*format) {
	case "csv":
		err = output.WriteExpensesCSV(w, expenses)
	case "html":
		err = output.WriteExpensesReport(w, expenses, time.Now())
	default:
		return fmt.Errorf("unknown export format %q (want csv or html)", *format)
	}
	if err != nil {
		return err
	}
	log.Info("exported expenses", "count", len(expenses), "format", *format)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("expenseimport serve")
	var (
		configFile = fs.String("config", "", "Config file")
		port       = fs.String("port", "", "Port to listen on (overrides config and $PORT)")
		verbose    = fs.Bool("verbose", false, "Show debug logs")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile, *verbose)
	if err != nil {
		return err
	}
	if p := os.Getenv("PORT"); p != "" {
		cfg.Server.Port = p
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	// No write timeout: event streams stay open for a whole commit.
	httpServer := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     srv.Handler(),
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting expenseimport server", "port", cfg.Server.Port, "store", cfg.Store.Backend, "auth", cfg.Server.Auth)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
	}
	log.Info("server stopped")
	return nil
}
