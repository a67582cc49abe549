package ledger

import "shgbook/internal/core"

// NewYear builds twelve all-zero months with one entry per member.
func NewYear(year int, memberIDs []int) core.YearLedger {
	y := core.YearLedger{Year: year, Months: make([]core.MonthRecord, core.MonthsPerYear)}
	for i := range y.Months {
		members := make([]core.MemberMonthEntry, len(memberIDs))
		for j, id := range memberIDs {
			members[j] = core.MemberMonthEntry{MemberID: id}
		}
		y.Months[i] = core.MonthRecord{Month: core.MonthNames[i], MonthIndex: i, Members: members}
	}
	return y
}

// AddMember appends a zero entry for memberID to every month that lacks one.
func AddMember(y core.YearLedger, memberID int) core.YearLedger {
	out := y.Clone()
	for i := range out.Months {
		if _, ok := out.Months[i].Find(memberID); ok {
			continue
		}
		out.Months[i].Members = append(out.Months[i].Members, core.MemberMonthEntry{MemberID: memberID})
	}
	return out
}

// RemoveMember drops memberID from every month and re-sums the totals.
// Other members' chains do not depend on it, so no recalculation is needed.
func RemoveMember(y core.YearLedger, memberID int) core.YearLedger {
	out := y.Clone()
	for i := range out.Months {
		kept := out.Months[i].Members[:0]
		for _, e := range out.Months[i].Members {
			if e.MemberID != memberID {
				kept = append(kept, e)
			}
		}
		out.Months[i].Members = kept
		Retotal(&out.Months[i])
	}
	return out
}

// Normalize pads or trims a ledger to twelve months with canonical names and
// indexes, keeping existing month records in position.
func Normalize(y core.YearLedger) core.YearLedger {
	out := y.Clone()
	months := make([]core.MonthRecord, core.MonthsPerYear)
	for i := range months {
		if i < len(out.Months) {
			months[i] = out.Months[i]
		}
		months[i].MonthIndex = i
		if months[i].Month == "" {
			months[i].Month = core.MonthNames[i]
		}
		if months[i].Members == nil {
			months[i].Members = []core.MemberMonthEntry{}
		}
	}
	out.Months = months
	return out
}
