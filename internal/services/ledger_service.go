package services

import (
	"context"
	"fmt"

	"shgbook/internal/core"
	"shgbook/internal/ledger"
	"shgbook/internal/log"
	"shgbook/internal/store"
)

// LedgerService edits and reads year ledgers. Every write recalculates the
// whole year before it is stored.
type LedgerService struct {
	deps   Deps
	audit  *AuditLog
	logger *log.Logger
}

// UpdateMonth replaces the raw inputs of one month and recalculates the year.
func (s *LedgerService) UpdateMonth(ctx context.Context, actor core.Actor, year, monthIndex int, inputs []core.RawEntry) (core.YearLedger, error) {
	if err := requireAdmin(actor, "edit ledger data"); err != nil {
		return core.YearLedger{}, err
	}
	if err := core.ValidateYear(year); err != nil {
		return core.YearLedger{}, err
	}
	if err := core.ValidateMonthIndex(monthIndex); err != nil {
		return core.YearLedger{}, err
	}
	if err := s.validateInputs(inputs); err != nil {
		return core.YearLedger{}, err
	}
	group, err := requireOpen(ctx, s.deps)
	if err != nil {
		return core.YearLedger{}, err
	}
	members, err := s.deps.Repo.Members(ctx)
	if err != nil {
		return core.YearLedger{}, err
	}
	if err := requireMembers(members, inputs); err != nil {
		return core.YearLedger{}, err
	}
	current, err := s.deps.Repo.Year(ctx, year)
	if err != nil {
		return core.YearLedger{}, err
	}
	current = ledger.Normalize(current)

	summary, changed := ledger.DiffMonth(current.Months[monthIndex], inputs, displayNames(members))
	next := calculator(group).Year(ledger.ReplaceMonth(current, monthIndex, inputs))
	saved, err := s.deps.Repo.SaveYear(ctx, next, actor.Name())
	if err != nil {
		s.logger.Fields(ctx, log.LevelError, "Failed to save month", log.NewFields().
			WithOperation(log.OpUpdate).WithUser(actor.Name()).WithLedger(year, monthIndex).WithError(err))
		return core.YearLedger{}, err
	}

	s.audit.Record(ctx, actor, core.DataEntryActivity{
		Year:           year,
		MonthIndex:     monthIndex,
		Month:          core.MonthNames[monthIndex],
		Summary:        summary,
		ChangedMembers: changed,
	})
	announce(ctx, s.deps, s.logger, year, string(core.ActivityDataEntry))
	return saved, nil
}

// AddYear creates twelve empty months for every current member.
func (s *LedgerService) AddYear(ctx context.Context, actor core.Actor, year int) (core.YearLedger, error) {
	if err := requireAdmin(actor, "add years"); err != nil {
		return core.YearLedger{}, err
	}
	if err := core.ValidateYear(year); err != nil {
		return core.YearLedger{}, err
	}
	if _, err := requireOpen(ctx, s.deps); err != nil {
		return core.YearLedger{}, err
	}
	exists, err := s.deps.Repo.HasYear(ctx, year)
	if err != nil {
		return core.YearLedger{}, err
	}
	if exists {
		return core.YearLedger{}, core.Invalid("Year %d already exists", year)
	}
	members, err := s.deps.Repo.Members(ctx)
	if err != nil {
		return core.YearLedger{}, err
	}
	saved, err := s.deps.Repo.SaveYear(ctx, ledger.NewYear(year, memberIDs(members)), actor.Name())
	if err != nil {
		return core.YearLedger{}, err
	}
	s.audit.Record(ctx, actor, core.YearActivity{Action: core.ActivityYearAdd, Year: year})
	announce(ctx, s.deps, s.logger, year, string(core.ActivityYearAdd))
	return saved, nil
}

func (s *LedgerService) Year(ctx context.Context, year int) (core.YearLedger, error) {
	if err := core.ValidateYear(year); err != nil {
		return core.YearLedger{}, err
	}
	return s.deps.Repo.Year(ctx, year)
}

// Years lists stored ledgers in year order.
func (s *LedgerService) Years(ctx context.Context) ([]core.YearLedger, error) {
	return s.deps.Repo.Years(ctx)
}

func (s *LedgerService) Summary(ctx context.Context, year int) (core.YearSummary, error) {
	y, err := s.Year(ctx, year)
	if err != nil {
		return core.YearSummary{}, err
	}
	return ledger.Summarize(y), nil
}

// MemberTotals returns one row per member present in the year's last month.
func (s *LedgerService) MemberTotals(ctx context.Context, year int) ([]core.MemberTotals, error) {
	y, err := s.Year(ctx, year)
	if err != nil {
		return nil, err
	}
	return ledger.MemberSummaries(y), nil
}

func (s *LedgerService) MemberSummary(ctx context.Context, year, memberID int) (core.MemberTotals, error) {
	if err := core.ValidateMemberID(memberID); err != nil {
		return core.MemberTotals{}, err
	}
	y, err := s.Year(ctx, year)
	if err != nil {
		return core.MemberTotals{}, err
	}
	t, ok := ledger.MemberSummary(y, memberID)
	if !ok {
		return core.MemberTotals{}, core.NotFound("Member #%d has no entries in %d", memberID, year)
	}
	return t, nil
}

// Recalculate recomputes and stores a year with the group's current rate.
func (s *LedgerService) Recalculate(ctx context.Context, actor core.Actor, year int) (core.YearLedger, error) {
	if err := requireAdmin(actor, "recalculate years"); err != nil {
		return core.YearLedger{}, err
	}
	if err := core.ValidateYear(year); err != nil {
		return core.YearLedger{}, err
	}
	group, err := requireOpen(ctx, s.deps)
	if err != nil {
		return core.YearLedger{}, err
	}
	current, err := s.deps.Repo.Year(ctx, year)
	if err != nil {
		return core.YearLedger{}, err
	}
	saved, err := s.deps.Repo.SaveYear(ctx, calculator(group).Year(ledger.Normalize(current)), actor.Name())
	if err != nil {
		return core.YearLedger{}, err
	}
	s.audit.Record(ctx, actor, core.YearActivity{Action: core.ActivityYearRecalculate, Year: year})
	announce(ctx, s.deps, s.logger, year, string(core.ActivityYearRecalculate))
	return saved, nil
}

// ImportYear takes only the raw fields of the given months, creating the year
// when needed, and recalculates everything else.
func (s *LedgerService) ImportYear(ctx context.Context, actor core.Actor, year int, months []core.MonthInput) (core.YearLedger, error) {
	if err := requireAdmin(actor, "import years"); err != nil {
		return core.YearLedger{}, err
	}
	if err := core.ValidateYear(year); err != nil {
		return core.YearLedger{}, err
	}
	if len(months) == 0 {
		return core.YearLedger{}, core.Invalid("Import for %d has no months", year)
	}
	seen := map[int]bool{}
	for _, m := range months {
		if err := core.ValidateMonthIndex(m.MonthIndex); err != nil {
			return core.YearLedger{}, err
		}
		if seen[m.MonthIndex] {
			return core.YearLedger{}, core.Invalid("%s appears twice in the import", core.MonthNames[m.MonthIndex])
		}
		seen[m.MonthIndex] = true
		if err := s.validateInputs(m.Entries); err != nil {
			return core.YearLedger{}, fmt.Errorf("%s: %w", core.MonthNames[m.MonthIndex], err)
		}
	}
	group, err := requireOpen(ctx, s.deps)
	if err != nil {
		return core.YearLedger{}, err
	}
	members, err := s.deps.Repo.Members(ctx)
	if err != nil {
		return core.YearLedger{}, err
	}
	for _, m := range months {
		if err := requireMembers(members, m.Entries); err != nil {
			return core.YearLedger{}, err
		}
	}

	base, err := s.deps.Repo.Year(ctx, year)
	switch {
	case err == nil:
		base = ledger.Normalize(base)
	case core.KindOf(err) == core.KindNotFound:
		base = ledger.NewYear(year, memberIDs(members))
	default:
		return core.YearLedger{}, err
	}
	for _, m := range months {
		base = ledger.ReplaceMonth(base, m.MonthIndex, m.Entries)
	}
	saved, err := s.deps.Repo.SaveYear(ctx, calculator(group).Year(base), actor.Name())
	if err != nil {
		return core.YearLedger{}, err
	}
	s.logger.Fields(ctx, log.LevelInfo, "Imported year", log.NewFields().
		WithOperation(log.OpImport).WithUser(actor.Name()).WithLedger(year, -1))
	s.audit.Record(ctx, actor, core.YearActivity{Action: core.ActivityYearImport, Year: year})
	announce(ctx, s.deps, s.logger, year, string(core.ActivityYearImport))
	return saved, nil
}

// CurrentFinancialYear is the April-start year containing today.
func (s *LedgerService) CurrentFinancialYear() int {
	return core.CurrentFinancialYear(s.deps.Now())
}

// Watch streams a year's stored state.
func (s *LedgerService) Watch(ctx context.Context, year int, fn func(y core.YearLedger, found bool, err error)) (store.Cancel, error) {
	if err := core.ValidateYear(year); err != nil {
		return nil, err
	}
	return s.deps.Repo.WatchYear(ctx, year, fn)
}

func (s *LedgerService) validateInputs(inputs []core.RawEntry) error {
	seen := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		if err := core.ValidateRaw(in, s.deps.MaxAmount); err != nil {
			return err
		}
		if seen[in.MemberID] {
			return core.Invalid("Member #%d is entered twice", in.MemberID)
		}
		seen[in.MemberID] = true
	}
	return nil
}

func requireMembers(members []core.Member, inputs []core.RawEntry) error {
	known := make(map[int]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}
	for _, in := range inputs {
		if !known[in.MemberID] {
			return core.NotFound("Member #%d not found", in.MemberID)
		}
	}
	return nil
}

func displayNames(members []core.Member) func(int) string {
	names := make(map[int]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName()
	}
	return func(id int) string { return names[id] }
}
