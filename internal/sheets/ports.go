package sheets

import (
	"context"

	"shgbook/internal/core"
)

// Ports for the spreadsheet adapter.
type (
	// LedgerWriter publishes a year as twelve month sheets.
	LedgerWriter interface {
		ExportYear(ctx context.Context, book Book) (ref string, err error)
	}

	// LedgerReader reads a year's raw inputs back from its month sheets.
	LedgerReader interface {
		ImportYear(ctx context.Context, year int) ([]core.MonthInput, error)
	}
)
