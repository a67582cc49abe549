// Package worker mirrors saved ledgers into the spreadsheet and pulls
// spreadsheet edits back in.
package worker

import (
	"context"
	"errors"
	"fmt"

	"shgbook/internal/amqp"
	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/sheets"
	"shgbook/internal/store"
)

// DefaultTitle heads every exported sheet when the group has no name.
const DefaultTitle = "Self Help Group"

// ExportWorker writes year ledgers to the spreadsheet when they are saved.
type ExportWorker struct {
	repo   *store.Repository
	sheets sheets.LedgerWriter
	logger *log.Logger
}

func NewExportWorker(repo *store.Repository, writer sheets.LedgerWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		repo:   repo,
		sheets: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerSaved exports the year named by msg. Messages for another group
// and years deleted since the message was sent are acknowledged and skipped.
func (w *ExportWorker) HandleLedgerSaved(ctx context.Context, msg *amqp.LedgerSavedMessage) error {
	if msg.GroupID != w.repo.GroupID() {
		w.logger.DebugContext(ctx, "Skipping message for another group",
			"group_id", msg.GroupID, log.FieldYear, msg.Year)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger saved message",
		log.FieldYear, msg.Year,
		"reason", msg.Reason)

	ref, err := w.ExportYear(ctx, msg.Year)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Year no longer exists, skipping export", log.FieldYear, msg.Year)
		return nil
	}
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Successfully exported year",
		log.FieldYear, msg.Year,
		log.FieldSheetsRef, ref)
	return nil
}

// ExportYear writes one year's month sheets.
func (w *ExportWorker) ExportYear(ctx context.Context, year int) (string, error) {
	y, err := w.repo.Year(ctx, year)
	if err != nil {
		return "", err
	}
	members, err := w.repo.Members(ctx)
	if err != nil {
		return "", fmt.Errorf("load members: %w", err)
	}
	book := sheets.Book{Title: w.title(ctx), Year: y, Members: members}

	ref, err := w.sheets.ExportYear(ctx, book)
	if err != nil {
		return "", fmt.Errorf("export year %d: %w", year, err)
	}
	return ref, nil
}

// StartupExport exports every stored year so the spreadsheet catches up with
// writes made while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	years, err := w.repo.Years(ctx)
	if err != nil {
		return fmt.Errorf("list years for startup export: %w", err)
	}
	if len(years) == 0 {
		w.logger.InfoContext(ctx, "No years found on startup")
		return nil
	}

	var exported, failed int
	for _, y := range years {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.ExportYear(ctx, y.Year); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export year during startup",
				log.FieldYear, y.Year, log.FieldError, err)
			failed++
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Startup export completed",
		"total", len(years),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) title(ctx context.Context) string {
	g, err := w.repo.GroupInfo(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			w.logger.WarnContext(ctx, "Could not load group name for export", log.FieldError, err)
		}
		return DefaultTitle
	}
	switch {
	case g.NameEN != "":
		return g.NameEN
	case g.NameTA != "":
		return g.NameTA
	}
	return DefaultTitle
}
