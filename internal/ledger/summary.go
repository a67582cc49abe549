package ledger

import (
	"sort"

	"shgbook/internal/core"
)

// Summarize aggregates a recalculated year.
func Summarize(y core.YearLedger) core.YearSummary {
	s := core.YearSummary{Year: y.Year}
	for _, m := range y.Months {
		s.TotalSavings += m.TotalSaving
		if m.TotalSaving > 0 {
			s.ActiveSavingMonths++
		}
		for _, e := range m.Members {
			s.TotalLoans += e.LoanTaken
			s.TotalInterest += e.Interest()
			s.TotalRepayments += e.LoanRepayment
			if e.LoanTaken > 0 {
				s.LoansIssued++
			}
		}
	}
	if last, ok := lastMonth(y); ok {
		s.FinalCumulative = last.TotalCumulative
	}
	return s
}

// MemberSummary aggregates one member over a year. The second result is
// false when the member has no entry in any month.
func MemberSummary(y core.YearLedger, memberID int) (core.MemberTotals, bool) {
	t := core.MemberTotals{MemberID: memberID}
	found := false
	for _, m := range y.Months {
		e, ok := m.Find(memberID)
		if !ok {
			continue
		}
		found = true
		t.TotalSaved += e.Saving
		t.TotalBorrowed += e.LoanTaken
		t.TotalRepaid += e.LoanRepayment
		t.TotalInterest += e.Interest()
	}
	if last, ok := lastMonth(y); ok {
		if e, ok := last.Find(memberID); ok {
			t.Cumulative = e.Cumulative
			t.Balance = e.LoanBalance()
		}
	}
	return t, found
}

// MemberSummaries returns totals for every member present in the year, by id.
func MemberSummaries(y core.YearLedger) []core.MemberTotals {
	seen := map[int]bool{}
	var ids []int
	for _, m := range y.Months {
		for _, e := range m.Members {
			if !seen[e.MemberID] {
				seen[e.MemberID] = true
				ids = append(ids, e.MemberID)
			}
		}
	}
	sort.Ints(ids)
	out := make([]core.MemberTotals, 0, len(ids))
	for _, id := range ids {
		t, _ := MemberSummary(y, id)
		out = append(out, t)
	}
	return out
}

func lastMonth(y core.YearLedger) (core.MonthRecord, bool) {
	for _, m := range y.Months {
		if m.MonthIndex == core.MonthsPerYear-1 {
			return m, true
		}
	}
	if len(y.Months) == 0 {
		return core.MonthRecord{}, false
	}
	return y.Months[len(y.Months)-1], true
}
