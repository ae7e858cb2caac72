// Package service provides the business logic layer (use cases):
// importing statements, querying them and projecting installment groups.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/parser"
	"github.com/dal01/financas/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var importTracer = otel.Tracer("service/import")

// ImportOptions tune one import run.
type ImportOptions struct {
	// AccountID groups transactions for installment detection. Empty means
	// "use the card tail from the statement header".
	AccountID string
	// DryRun parses and reports but never writes to the store.
	DryRun bool
	// Replace deletes a previously imported statement with the same card
	// tail and billing cycle before re-importing.
	Replace bool
}

// ImportService runs the parse-and-persist pipeline for statement sources.
type ImportService struct {
	store       port.StatementStore
	extractor   port.TextExtractor
	patterns    *parser.PatternTable
	parserOpts  parser.Options
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewImportService creates the import service with all dependencies injected.
func NewImportService(
	store port.StatementStore,
	extractor port.TextExtractor,
	patterns *parser.PatternTable,
	parserOpts parser.Options,
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ImportService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ImportService{
		store:       store,
		extractor:   extractor,
		patterns:    patterns,
		parserOpts:  parserOpts,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// ImportText parses one statement text and persists it. The source string is
// a label for logs and results (a file path, an upload name).
func (s *ImportService) ImportText(ctx context.Context, runID, source, text string, opts ImportOptions) domain.ImportResult {
	ctx, span := importTracer.Start(ctx, "ImportService.ImportText")
	defer span.End()
	span.SetAttributes(attribute.String("import.source", source))

	result := domain.ImportResult{RunID: runID, Source: source}

	start := time.Now()
	header, err := parser.ParseHeader(s.patterns, text)
	s.metrics.RecordParseDuration("header", time.Since(start))
	if err != nil {
		s.metrics.IncrStatement(string(domain.OutcomeFailed))
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		s.logger.Warn("statement rejected",
			zap.String("source", source),
			zap.Error(err),
		)
		return result
	}
	if s.parserOpts.Issuer != "" {
		header.Issuer = s.parserOpts.Issuer
	}
	s.metrics.AddObservations(len(header.Observations))

	start = time.Now()
	txs, unmatched := parser.ParseTransactions(s.patterns, text, header.ClosedAt, s.parserOpts)
	s.metrics.RecordParseDuration("transactions", time.Since(start))
	s.metrics.AddTransactionsParsed(len(txs))

	duplicates := 0
	for i := range txs {
		if txs[i].Duplicate {
			duplicates++
		}
	}
	s.metrics.AddDuplicateLines(duplicates)

	for _, u := range unmatched {
		s.logger.Debug("unmatched block",
			zap.String("source", source),
			zap.String("reason", u.Reason),
			zap.Strings("lines", u.Lines),
		)
	}

	result.Transactions = len(txs)
	result.Duplicates = duplicates

	if opts.DryRun {
		s.logger.Info("dry run: statement parsed",
			zap.String("source", source),
			zap.String("card_tail", header.CardTail),
			zap.Time("billing_cycle", header.BillingCycle),
			zap.Int("transactions", len(txs)),
			zap.Int("duplicates", duplicates),
		)
		result.Outcome = domain.OutcomeImported
		return result
	}

	st, err := s.persist(ctx, header, txs, source, opts)
	if err != nil {
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			s.metrics.IncrStatement(string(domain.OutcomeSkipped))
			result.Outcome = domain.OutcomeSkipped
			result.Error = err.Error()
			return result
		}
		s.metrics.IncrStoreError("import")
		s.metrics.IncrStatement(string(domain.OutcomeFailed))
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		return result
	}

	s.metrics.IncrStatement(string(domain.OutcomeImported))
	result.Outcome = domain.OutcomeImported
	result.StatementID = st.ID
	s.logger.Info("statement imported",
		zap.String("source", source),
		zap.String("statement_id", st.ID),
		zap.String("card_tail", st.CardTail),
		zap.String("billing_cycle", st.BillingCycle),
		zap.Int("transactions", len(txs)),
		zap.Int("duplicates", duplicates),
	)
	return result
}

// persist stores the header and its transactions, enforcing statement-level
// idempotency on the source hash first and the (card tail, cycle) pair second.
func (s *ImportService) persist(ctx context.Context, header *domain.StatementHeader, txs []domain.ParsedTransaction, source string, opts ImportOptions) (*domain.Statement, error) {
	existing, err := s.store.FindStatementBySourceHash(ctx, header.SourceHash)
	if err != nil {
		return nil, err
	}
	if existing != nil && !opts.Replace {
		return nil, &domain.ErrDuplicate{Key: header.SourceHash}
	}

	if existing == nil {
		existing, err = s.store.FindStatementByCycle(ctx, header.CardTail, header.BillingCycle)
		if err != nil {
			return nil, err
		}
		if existing != nil && !opts.Replace {
			return nil, &domain.ErrDuplicate{
				Key: fmt.Sprintf("%s/%s", header.CardTail, header.BillingCycle.Format("2006-01")),
			}
		}
	}

	if existing != nil {
		s.logger.Info("replacing statement",
			zap.String("statement_id", existing.ID),
			zap.String("card_tail", existing.CardTail),
		)
		if err := s.store.DeleteStatement(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	total := decimal.Zero
	if header.Total != nil {
		total = *header.Total
	}
	st := &domain.Statement{
		Issuer:       header.Issuer,
		CardTail:     header.CardTail,
		Brand:        string(header.Brand),
		ClosedAt:     header.ClosedAt.Format("2006-01-02"),
		DueAt:        header.DueAt.Format("2006-01-02"),
		BillingCycle: header.BillingCycle.Format("2006-01-02"),
		Total:        total,
		SourceHash:   header.SourceHash,
		SourceFile:   source,
		Observations: header.Observations,
	}

	created, err := s.store.CreateStatement(ctx, st)
	if err != nil {
		return nil, err
	}

	accountID := opts.AccountID
	if accountID == "" {
		accountID = header.CardTail
	}
	if err := s.store.InsertTransactions(ctx, created.ID, accountID, txs); err != nil {
		return nil, err
	}
	return created, nil
}

// ImportFile extracts text from one PDF and imports it.
func (s *ImportService) ImportFile(ctx context.Context, runID, path string, opts ImportOptions) domain.ImportResult {
	ctx, span := importTracer.Start(ctx, "ImportService.ImportFile")
	defer span.End()
	span.SetAttributes(attribute.String("import.path", path))

	text, err := s.extractor.ExtractText(path)
	if err != nil {
		s.metrics.IncrStatement(string(domain.OutcomeFailed))
		return domain.ImportResult{
			RunID:   runID,
			Source:  path,
			Outcome: domain.OutcomeFailed,
			Error:   err.Error(),
		}
	}
	return s.ImportText(ctx, runID, path, text, opts)
}

// ImportDir imports every *.pdf under dir, a bounded number at a time. The
// whole run shares one run id; per-file failures never abort the batch.
func (s *ImportService) ImportDir(ctx context.Context, dir string, opts ImportOptions) (*domain.ImportSummary, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.ImportDir")
	defer span.End()
	span.SetAttributes(attribute.String("import.dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	runID := uuid.NewString()
	s.logger.Info("import run started",
		zap.String("run_id", runID),
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Bool("dry_run", opts.DryRun),
	)

	var mu sync.Mutex
	results := make([]domain.ImportResult, 0, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := s.ImportFile(gctx, runID, path, opts)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })

	summary := &domain.ImportSummary{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeImported:
			summary.Imported++
		case domain.OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	s.logger.Info("import run finished",
		zap.String("run_id", runID),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
