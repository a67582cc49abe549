package worker

import (
	"context"
	"fmt"

	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/sheets"
)

// YearImporter applies raw month inputs to a stored year.
type YearImporter interface {
	ImportYear(ctx context.Context, actor core.Actor, year int, months []core.MonthInput) (core.YearLedger, error)
}

// SheetImporter pulls a year edited in the spreadsheet back into the ledger.
type SheetImporter struct {
	reader   sheets.LedgerReader
	importer YearImporter
	logger   *log.Logger
}

func NewSheetImporter(reader sheets.LedgerReader, importer YearImporter, logger *log.Logger) *SheetImporter {
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetImporter{reader: reader, importer: importer, logger: logger.WithComponent(log.ComponentWorker)}
}

// Import reads year from the spreadsheet and applies it on behalf of actor.
func (s *SheetImporter) Import(ctx context.Context, actor core.Actor, year int) (core.YearLedger, error) {
	months, err := s.reader.ImportYear(ctx, year)
	if err != nil {
		return core.YearLedger{}, fmt.Errorf("read year %d from sheets: %w", year, err)
	}
	y, err := s.importer.ImportYear(ctx, actor, year, months)
	if err != nil {
		return core.YearLedger{}, err
	}
	s.logger.InfoContext(ctx, "Imported year from sheets",
		log.FieldYear, year,
		"months", len(months),
		log.FieldUser, actor.Name())
	return y, nil
}
