// Package ledger implements the monthly recalculation engine. Every function
// is pure: inputs are never mutated and results share no slices with them.
package ledger

import (
	"github.com/shopspring/decimal"

	"shgbook/internal/core"
)

// Calculator applies one group's interest rate.
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator returns a Calculator charging rate (a fraction, 0.02 = 2%)
// on each month's new loans.
func NewCalculator(rate float64) Calculator {
	return Calculator{rate: decimal.NewFromFloat(rate)}
}

// Rate returns the configured fraction.
func (c Calculator) Rate() float64 {
	f, _ := c.rate.Float64()
	return f
}

// Interest rounds loanTaken*rate to a whole unit, halves rounding up.
func (c Calculator) Interest(loanTaken int64) int64 {
	return decimal.NewFromInt(loanTaken).Mul(c.rate).Round(0).IntPart()
}

// Entry derives one member's month from its raw inputs and the member's fully
// derived previous month. prev is nil when there is no history.
func (c Calculator) Entry(entry core.MemberMonthEntry, prev *core.MemberMonthEntry) core.MemberMonthEntry {
	var prevCumulative, oldLoan, oldInterest int64
	if prev != nil {
		prevCumulative = prev.Cumulative
		oldLoan = prev.Balance
		oldInterest = prev.CurrentInterest
	}
	out := entry.Raw().Entry()
	out.Cumulative = prevCumulative + entry.Saving
	out.OldLoan = oldLoan
	out.OldInterest = oldInterest
	out.CurrentInterest = c.Interest(entry.LoanTaken)
	// Not clamped: over-repayment carries forward as a negative old loan.
	out.Balance = entry.LoanTaken + oldLoan - entry.LoanRepayment
	return out
}

// Month recalculates every entry of month against the already recalculated
// previous month (nil for the first month) and refreshes its totals.
func (c Calculator) Month(month core.MonthRecord, prev *core.MonthRecord) core.MonthRecord {
	var history map[int]core.MemberMonthEntry
	if prev != nil {
		history = make(map[int]core.MemberMonthEntry, len(prev.Members))
		for _, e := range prev.Members {
			history[e.MemberID] = e
		}
	}
	out := month
	out.Members = make([]core.MemberMonthEntry, len(month.Members))
	for i, e := range month.Members {
		var p *core.MemberMonthEntry
		if h, ok := history[e.MemberID]; ok {
			p = &h
		}
		out.Members[i] = c.Entry(e, p)
	}
	Retotal(&out)
	return out
}

// Year recalculates all months in order so each month reads its already
// recalculated predecessor. Month 0 always starts from zero history.
func (c Calculator) Year(y core.YearLedger) core.YearLedger {
	out := y.Clone()
	for i := range out.Months {
		var prev *core.MonthRecord
		if i > 0 {
			prev = &out.Months[i-1]
		}
		out.Months[i] = c.Month(out.Months[i], prev)
	}
	return out
}

// Retotal recomputes a month's totals from its entries.
func Retotal(m *core.MonthRecord) {
	m.TotalSaving, m.TotalCumulative = 0, 0
	for _, e := range m.Members {
		m.TotalSaving += e.Saving
		m.TotalCumulative += e.Cumulative
	}
}
