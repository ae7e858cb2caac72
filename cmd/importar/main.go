// Command importar imports Banco do Brasil documents into the store, one
// file or a whole directory per run: credit-card statement PDFs by default,
// checking-account OFX extracts with -ofx.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/dal01/financas/internal/config"
	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/extract"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/infra/resilience"
	"github.com/dal01/financas/internal/infra/supabase"
	"github.com/dal01/financas/internal/parser"
	"github.com/dal01/financas/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	var (
		dir            = flag.String("dir", "", "import every *.pdf under this directory")
		file           = flag.String("file", "", "import a single PDF")
		account        = flag.String("account", "", "account id for the imported transactions (default: card tail)")
		dryRun         = flag.Bool("dry-run", false, "parse and report without writing to the store")
		replace        = flag.Bool("replace", false, "replace statements already imported for the same cycle")
		debugUnmatched = flag.Bool("debug-unmatched", false, "log discarded line blocks")
		debugMax       = flag.Int("debug-max", 40, "max discarded blocks to log per statement")
		ofxMode        = flag.Bool("ofx", false, "treat inputs as checking-account OFX extracts")
		reset          = flag.Bool("reset", false, "with -ofx: delete each account's movements before importing")
	)
	flag.Parse()

	if (*dir == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -dir or -file is required")
		flag.Usage()
		os.Exit(2)
	}

	_ = config.LoadDotEnv(".env")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.StoreURL == "" && !*dryRun {
		logger.Fatal("STORE_URL is required (use -dry-run to parse without a store)")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.StoreURL,
		cfg.StoreAnonKey,
		cfg.StoreServiceKey,
		resilience.NewCircuitBreaker("postgrest"),
		resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
		logger,
	)

	if *ofxMode {
		runExtracts(store, cfg, *dir, *file, service.ExtractOptions{DryRun: *dryRun, Reset: *reset}, logger)
		return
	}

	svc := service.NewImportService(
		store,
		extract.NewPDFExtractor(logger),
		parser.DefaultPatterns(),
		parser.Options{DebugUnmatched: *debugUnmatched, DebugMax: *debugMax, Issuer: cfg.DefaultIssuer},
		cfg.ImportConcurrency,
		observability.NewMetrics(),
		logger,
	)

	opts := service.ImportOptions{
		AccountID: *account,
		DryRun:    *dryRun,
		Replace:   *replace,
	}

	ctx := context.Background()

	var summary *domain.ImportSummary
	if *dir != "" {
		var err error
		summary, err = svc.ImportDir(ctx, *dir, opts)
		if err != nil {
			logger.Fatal("import run failed", zap.Error(err))
		}
	} else {
		result := svc.ImportFile(ctx, uuid.NewString(), *file, opts)
		summary = &domain.ImportSummary{Results: []domain.ImportResult{result}}
		switch result.Outcome {
		case domain.OutcomeImported:
			summary.Imported = 1
		case domain.OutcomeSkipped:
			summary.Skipped = 1
		default:
			summary.Failed = 1
		}
	}

	for _, r := range summary.Results {
		line := fmt.Sprintf("%-28s %s", r.Outcome, r.Source)
		if r.Outcome == domain.OutcomeImported {
			line += fmt.Sprintf("  (%d lançamentos, %d duplicados)", r.Transactions, r.Duplicates)
		}
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("importados: %d  ignorados: %d  falhas: %d\n",
		summary.Imported, summary.Skipped, summary.Failed)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func runExtracts(store *supabase.Client, cfg *config.Config, dir, file string, opts service.ExtractOptions, logger *zap.Logger) {
	svc := service.NewExtractService(store, cfg.ImportConcurrency, observability.NewMetrics(), logger)

	ctx := context.Background()

	var summary *domain.ExtractImportSummary
	if dir != "" {
		var err error
		summary, err = svc.ImportOFXDir(ctx, dir, opts)
		if err != nil {
			logger.Fatal("ofx import run failed", zap.Error(err))
		}
	} else {
		result := svc.ImportOFXFile(ctx, uuid.NewString(), file, opts)
		summary = &domain.ExtractImportSummary{Results: []domain.ExtractImportResult{result}}
		if result.Outcome == domain.OutcomeImported {
			summary.Imported = 1
		} else {
			summary.Failed = 1
		}
	}

	for _, r := range summary.Results {
		line := fmt.Sprintf("%-28s %s", r.Outcome, r.Source)
		if r.Outcome == domain.OutcomeImported {
			line += fmt.Sprintf("  (%d contas, %d movimentos, %d pulados)", r.Accounts, r.Transactions, r.Skipped)
		}
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("importados: %d  falhas: %d\n", summary.Imported, summary.Failed)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
