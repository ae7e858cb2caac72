package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/ofx"
	"github.com/dal01/financas/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var extratoTracer = otel.Tracer("service/extrato")

// ExtractOptions tune one OFX import run.
type ExtractOptions struct {
	// DryRun parses and reports without writing to the store.
	DryRun bool
	// Reset deletes every movement of each account seen in the file before
	// writing the new ones.
	Reset bool
}

// ExtractService imports checking-account OFX extracts and answers read
// queries over them.
type ExtractService struct {
	store       port.ExtractStore
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewExtractService creates the extract import/query service.
func NewExtractService(store port.ExtractStore, concurrency int, metrics *observability.Metrics, logger *zap.Logger) *ExtractService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ExtractService{store: store, concurrency: concurrency, metrics: metrics, logger: logger}
}

// ImportOFX parses one OFX document and persists its accounts. Per-account
// movements upsert on (account_id, fitid), so repeated runs converge.
func (s *ExtractService) ImportOFX(ctx context.Context, runID, source string, r io.Reader, opts ExtractOptions) domain.ExtractImportResult {
	ctx, span := extratoTracer.Start(ctx, "ExtractService.ImportOFX")
	defer span.End()
	span.SetAttributes(attribute.String("import.source", source))

	result := domain.ExtractImportResult{RunID: runID, Source: source}

	start := time.Now()
	extracts, err := ofx.Parse(r)
	s.metrics.RecordParseDuration("ofx", time.Since(start))
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		s.logger.Warn("ofx extract rejected",
			zap.String("source", source),
			zap.Error(err),
		)
		return result
	}

	for _, ex := range extracts {
		result.Accounts++
		result.Transactions += len(ex.Transactions)
		result.Skipped += ex.Skipped
	}

	if opts.DryRun {
		s.logger.Info("dry run: ofx extract parsed",
			zap.String("source", source),
			zap.Int("accounts", result.Accounts),
			zap.Int("transactions", result.Transactions),
			zap.Int("skipped", result.Skipped),
		)
		result.Outcome = domain.OutcomeImported
		return result
	}

	for _, ex := range extracts {
		if opts.Reset {
			if err := s.store.DeleteExtractTransactions(ctx, ex.AccountID); err != nil {
				return s.failExtract(result, source, err)
			}
		}
		if err := s.store.UpsertExtractTransactions(ctx, ex.AccountID, ex.Transactions); err != nil {
			return s.failExtract(result, source, err)
		}
		if ex.Balance != nil {
			if err := s.store.UpsertBalance(ctx, *ex.Balance); err != nil {
				return s.failExtract(result, source, err)
			}
		}
	}

	result.Outcome = domain.OutcomeImported
	s.logger.Info("ofx extract imported",
		zap.String("source", source),
		zap.Int("accounts", result.Accounts),
		zap.Int("transactions", result.Transactions),
		zap.Int("skipped", result.Skipped),
	)
	return result
}

func (s *ExtractService) failExtract(result domain.ExtractImportResult, source string, err error) domain.ExtractImportResult {
	s.metrics.IncrStoreError("extract_import")
	result.Outcome = domain.OutcomeFailed
	result.Error = err.Error()
	s.logger.Error("ofx extract import failed",
		zap.String("source", source),
		zap.Error(err),
	)
	return result
}

// ImportOFXFile opens one .ofx file and imports it.
func (s *ExtractService) ImportOFXFile(ctx context.Context, runID, path string, opts ExtractOptions) domain.ExtractImportResult {
	ctx, span := extratoTracer.Start(ctx, "ExtractService.ImportOFXFile")
	defer span.End()
	span.SetAttributes(attribute.String("import.path", path))

	f, err := os.Open(path)
	if err != nil {
		return domain.ExtractImportResult{
			RunID:   runID,
			Source:  path,
			Outcome: domain.OutcomeFailed,
			Error:   err.Error(),
		}
	}
	defer f.Close()
	return s.ImportOFX(ctx, runID, path, f, opts)
}

// ImportOFXDir imports every *.ofx under dir, a bounded number at a time.
// Per-file failures never abort the batch.
func (s *ExtractService) ImportOFXDir(ctx context.Context, dir string, opts ExtractOptions) (*domain.ExtractImportSummary, error) {
	ctx, span := extratoTracer.Start(ctx, "ExtractService.ImportOFXDir")
	defer span.End()
	span.SetAttributes(attribute.String("import.dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading extract dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".ofx") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	runID := uuid.NewString()
	s.logger.Info("ofx import run started",
		zap.String("run_id", runID),
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Bool("dry_run", opts.DryRun),
	)

	var mu sync.Mutex
	results := make([]domain.ExtractImportResult, 0, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := s.ImportOFXFile(gctx, runID, path, opts)
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

	summary := &domain.ExtractImportSummary{Results: results}
	for _, r := range results {
		if r.Outcome == domain.OutcomeImported {
			summary.Imported++
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

// ListAccountTransactions fetches the persisted movements of one account.
func (s *ExtractService) ListAccountTransactions(ctx context.Context, accountID string) ([]domain.ExtractTransaction, error) {
	ctx, span := extratoTracer.Start(ctx, "ExtractService.ListAccountTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	txs, err := s.store.ListExtractTransactions(ctx, accountID)
	if err != nil {
		s.metrics.IncrStoreError("list_extract_transactions")
		return nil, err
	}
	return txs, nil
}
