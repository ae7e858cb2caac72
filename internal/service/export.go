package service

import (
	"context"
	"fmt"
	"io"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/parser"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var exportTracer = otel.Tracer("service/export")

// ExportService writes the whole dataset as an xlsx workbook with one sheet
// per view: statements, transactions and installment groups.
type ExportService struct {
	store        *StatementService
	installments *InstallmentService
	logger       *zap.Logger
}

// NewExportService creates the export service.
func NewExportService(statements *StatementService, installments *InstallmentService, logger *zap.Logger) *ExportService {
	return &ExportService{store: statements, installments: installments, logger: logger}
}

// ExportXLSX streams a workbook with every statement, every transaction of
// those statements and the current installment projection for all accounts.
func (s *ExportService) ExportXLSX(ctx context.Context, w io.Writer) error {
	ctx, span := exportTracer.Start(ctx, "ExportService.ExportXLSX")
	defer span.End()

	statements, err := s.store.ListStatements(ctx)
	if err != nil {
		return err
	}
	groups, err := s.installments.ListGroups(ctx, "")
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("closing workbook", zap.Error(err))
		}
	}()

	f.SetSheetName("Sheet1", "Faturas")
	if _, err := f.NewSheet("Lançamentos"); err != nil {
		return err
	}
	if _, err := f.NewSheet("Parcelamentos"); err != nil {
		return err
	}

	if err := s.writeStatementsSheet(f, statements); err != nil {
		return err
	}
	if err := s.writeTransactionsSheet(ctx, f, statements); err != nil {
		return err
	}
	if err := writeGroupsSheet(f, groups); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	s.logger.Info("xlsx export written",
		zap.Int("statements", len(statements)),
		zap.Int("installment_groups", len(groups)),
	)
	return nil
}

func (s *ExportService) writeStatementsSheet(f *excelize.File, statements []domain.Statement) error {
	const sheet = "Faturas"
	headers := []string{"Cartão", "Bandeira", "Ciclo", "Fechamento", "Vencimento", "Total", "Arquivo"}
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	for i, st := range statements {
		row := []any{
			st.CardTail,
			st.Brand,
			st.BillingCycle,
			st.ClosedAt,
			st.DueAt,
			parser.FormatBR(st.Total),
			st.SourceFile,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeTransactionsSheet(ctx context.Context, f *excelize.File, statements []domain.Statement) error {
	const sheet = "Lançamentos"
	headers := []string{"Cartão", "Ciclo", "Data", "Descrição", "País", "Seção", "Valor", "Parcela", "Duplicado"}
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}

	rowNum := 2
	for _, st := range statements {
		txs, err := s.store.ListTransactions(ctx, st.ID)
		if err != nil {
			return err
		}
		for _, t := range txs {
			row := []any{
				st.CardTail,
				st.BillingCycle,
				t.Date,
				t.Description,
				t.Country,
				t.Section,
				parser.FormatBR(t.Amount),
				t.InstallmentTag,
				t.Duplicate,
			}
			if err := writeRow(f, sheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writeGroupsSheet(f *excelize.File, groups []domain.InstallmentGroup) error {
	const sheet = "Parcelamentos"
	headers := []string{"Compra", "Descrição", "Parcelas", "Detectadas", "Valor médio", "Valor total"}
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	for i, g := range groups {
		row := []any{
			g.PurchaseDate,
			g.Description,
			g.InstallmentTotal,
			g.Count,
			parser.FormatBR(g.AvgValue),
			parser.FormatBR(g.TotalValue),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
