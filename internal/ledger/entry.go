package ledger

import (
	"fmt"
	"strings"

	"shgbook/internal/core"
)

// ReplaceMonth swaps the raw inputs of one month for inputs. Derived fields
// are left zero for the caller to recalculate.
func ReplaceMonth(y core.YearLedger, monthIndex int, inputs []core.RawEntry) core.YearLedger {
	out := y.Clone()
	members := make([]core.MemberMonthEntry, len(inputs))
	for i, in := range inputs {
		members[i] = in.Entry()
	}
	out.Months[monthIndex].Members = members
	return out
}

// DiffMonth summarises a data entry against the month as previously stored.
// Members not present in old are counted in the totals but not diffed.
func DiffMonth(old core.MonthRecord, inputs []core.RawEntry, name func(id int) string) (core.DataEntrySummary, []core.MemberChange) {
	var s core.DataEntrySummary
	var changes []core.MemberChange
	for _, in := range inputs {
		s.TotalSaving += in.Saving
		s.TotalNewLoan += in.LoanTaken
		s.TotalRepayment += in.LoanRepayment

		prev, ok := old.Find(in.MemberID)
		if !ok {
			continue
		}
		var diffs []string
		if prev.Saving != in.Saving {
			diffs = append(diffs, fmt.Sprintf("saving: %d→%d", prev.Saving, in.Saving))
		}
		if prev.LoanTaken != in.LoanTaken {
			diffs = append(diffs, fmt.Sprintf("loan: %d→%d", prev.LoanTaken, in.LoanTaken))
		}
		if prev.LoanRepayment != in.LoanRepayment {
			diffs = append(diffs, fmt.Sprintf("repay: %d→%d", prev.LoanRepayment, in.LoanRepayment))
		}
		if len(diffs) == 0 {
			continue
		}
		display := ""
		if name != nil {
			display = name(in.MemberID)
		}
		if display == "" {
			display = fmt.Sprintf("#%d", in.MemberID)
		}
		changes = append(changes, core.MemberChange{ID: in.MemberID, Name: display, Changes: strings.Join(diffs, ", ")})
	}
	s.MembersChanged = len(changes)
	if len(changes) > core.MaxChangedMembers {
		changes = changes[:core.MaxChangedMembers]
	}
	return s, changes
}
