// Package sheets defines the twelve-sheet-per-year spreadsheet layout shared
// by export and import, and the ports of the adapters that move it.
//
// Each month sheet holds:
//
//	row 0   title
//	row 1   "{Month} {year}"
//	row 2   column headers
//	row 3.. one row per member
//	        one blank row
//	last    totals
package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"shgbook/internal/core"
)

// Column positions within a month sheet.
const (
	ColSerial = iota
	ColMemberID
	ColName
	ColSaving
	ColCumulative
	ColNewLoan
	ColOldLoan
	ColRepayment
	ColOldInterest
	ColInterest
	ColBalance

	columnCount
)

// FirstDataRow is the index of the first member row.
const FirstDataRow = 3

// Headers are the column titles written to row 2.
var Headers = []string{
	"S.No", "Member ID", "Name", "Saving", "Cumulative", "New Loan",
	"Old Loan", "Repayment", "Old Interest", "Interest", "Balance",
}

// Book is one year ready for export.
type Book struct {
	Title   string
	Year    core.YearLedger
	Members []core.Member
}

// SheetName names the tab holding monthIndex of year.
func SheetName(year, monthIndex int) string {
	return fmt.Sprintf("%s %d", core.MonthNames[monthIndex], year)
}

// LastColumn is the spreadsheet letter of the balance column.
func LastColumn() string {
	return string(rune('A' + columnCount - 1))
}

// MonthRows renders one month sheet.
func MonthRows(b Book, monthIndex int) [][]any {
	m := b.Year.Months[monthIndex]
	names := make(map[int]string, len(b.Members))
	for _, member := range b.Members {
		names[member.ID] = member.Name
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	rows := [][]any{
		{b.Title},
		{SheetName(b.Year.Year, monthIndex)},
		header,
	}

	var newLoan, oldLoan, repay, oldInterest, interest, balance int64
	for i, e := range m.Members {
		name := names[e.MemberID]
		if name == "" {
			name = fmt.Sprintf("Member %d", e.MemberID)
		}
		rows = append(rows, []any{
			i + 1, e.MemberID, name, e.Saving, e.Cumulative, e.LoanTaken,
			e.OldLoan, e.LoanRepayment, e.OldInterest, e.CurrentInterest, e.Balance,
		})
		newLoan += e.LoanTaken
		oldLoan += e.OldLoan
		repay += e.LoanRepayment
		oldInterest += e.OldInterest
		interest += e.CurrentInterest
		balance += e.Balance
	}
	rows = append(rows, []any{}, []any{
		"", "", "Total", m.TotalSaving, m.TotalCumulative, newLoan,
		oldLoan, repay, oldInterest, interest, balance,
	})
	return rows
}

// ParseMonthRows reads the raw inputs of one month sheet. Rows run from
// FirstDataRow up to, but excluding, the blank and totals rows; rows without a
// numeric member id are skipped. Only saving, new loan and repayment are
// read; derived columns are ignored.
func ParseMonthRows(monthIndex int, values [][]any, max int64) (core.MonthInput, error) {
	in := core.MonthInput{MonthIndex: monthIndex}
	month := core.MonthNames[monthIndex]
	seen := map[int]bool{}
	for r := FirstDataRow; r < len(values)-2; r++ {
		row := values[r]
		id, ok := memberID(cell(row, ColMemberID))
		if !ok {
			continue
		}
		if seen[id] {
			return core.MonthInput{}, core.Invalid("%s row %d: member #%d appears twice", month, r+1, id)
		}
		seen[id] = true

		entry := core.RawEntry{MemberID: id}
		var err error
		if entry.Saving, err = core.ParseAmount("Monthly saving", cell(row, ColSaving), max); err != nil {
			return core.MonthInput{}, fmt.Errorf("%s row %d: %w", month, r+1, err)
		}
		if entry.LoanTaken, err = core.ParseAmount("New loan", cell(row, ColNewLoan), max); err != nil {
			return core.MonthInput{}, fmt.Errorf("%s row %d: %w", month, r+1, err)
		}
		if entry.LoanRepayment, err = core.ParseAmount("Repayment", cell(row, ColRepayment), max); err != nil {
			return core.MonthInput{}, fmt.Errorf("%s row %d: %w", month, r+1, err)
		}
		in.Entries = append(in.Entries, entry)
	}
	return in, nil
}

func cell(row []any, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[col]))
}

func memberID(s string) (int, bool) {
	s = strings.TrimSuffix(s, ".0")
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
