package sheets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/core"
	"shgbook/internal/ledger"
)

func sampleBook() Book {
	y := ledger.NewYear(2024, []int{1, 2})
	y.Months[0].Members[0].Saving = 500
	y.Months[0].Members[1].Saving = 500
	y.Months[0].Members[1].LoanTaken = 1000
	y = ledger.NewCalculator(0.02).Year(y)
	return Book{
		Title:   "Test Group",
		Year:    y,
		Members: []core.Member{{ID: 1, Name: "Anita"}, {ID: 2, Name: "Bala"}},
	}
}

func TestMonthRowsLayout(t *testing.T) {
	rows := MonthRows(sampleBook(), 0)

	require.Len(t, rows, 3+2+2)
	assert.Equal(t, []any{"Test Group"}, rows[0])
	assert.Equal(t, []any{"January 2024"}, rows[1])
	assert.Equal(t, "S.No", rows[2][ColSerial])
	assert.Equal(t, "Balance", rows[2][ColBalance])

	bala := rows[4]
	assert.Equal(t, 2, bala[ColSerial])
	assert.Equal(t, 2, bala[ColMemberID])
	assert.Equal(t, "Bala", bala[ColName])
	assert.Equal(t, int64(1000), bala[ColNewLoan])
	assert.Equal(t, int64(20), bala[ColInterest])

	assert.Empty(t, rows[5])
	totals := rows[6]
	assert.Equal(t, "Total", totals[ColName])
	assert.Equal(t, int64(1000), totals[ColSaving])
	assert.Equal(t, int64(1000), totals[ColBalance])
}

func TestExportedSheetImportsBack(t *testing.T) {
	b := sampleBook()
	in, err := ParseMonthRows(0, MonthRows(b, 0), core.DefaultMaxAmount)
	require.NoError(t, err)
	assert.Equal(t, []core.RawEntry{
		{MemberID: 1, Saving: 500},
		{MemberID: 2, Saving: 500, LoanTaken: 1000},
	}, in.Entries)
}

func TestParseMonthRowsIgnoresDerivedColumns(t *testing.T) {
	values := [][]any{
		{"Group"},
		{"June 2024"},
		{"S.No", "Member ID"},
		{"1", "12", "K. Jayalakshmi", "500", "3000", "", "9000", "", "200", "999", "-5"},
		{"", "note", "carried over"},
		{"2", "13.0", "B. Tripurasundhari", "₹500", "3000", "7,000", "", "0", "", "", ""},
		{},
		{"", "", "Total", "1000"},
	}
	in, err := ParseMonthRows(5, values, core.DefaultMaxAmount)
	require.NoError(t, err)
	assert.Equal(t, 5, in.MonthIndex)
	assert.Equal(t, []core.RawEntry{
		{MemberID: 12, Saving: 500},
		{MemberID: 13, Saving: 500, LoanTaken: 7000},
	}, in.Entries)
}

func TestParseMonthRowsRejectsBadCells(t *testing.T) {
	base := func(row []any) [][]any {
		return [][]any{{"t"}, {"m"}, {"h"}, row, {}, {"total"}}
	}
	tests := map[string][][]any{
		"negative saving": base([]any{"1", "1", "A", "-5"}),
		"fractional loan": base([]any{"1", "1", "A", "0", "", "10.5"}),
		"text repayment":  base([]any{"1", "1", "A", "0", "", "0", "", "abc"}),
		"duplicate id": {{"t"}, {"m"}, {"h"},
			{"1", "1", "A", "1"}, {"2", "1", "A", "1"}, {}, {"total"}},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMonthRows(0, values, core.DefaultMaxAmount)
			assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)
		})
	}
}

func TestParseMonthRowsShortSheet(t *testing.T) {
	in, err := ParseMonthRows(0, [][]any{{"t"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, in.Entries)
}

func TestSheetNameAndLastColumn(t *testing.T) {
	assert.Equal(t, "December 2025", SheetName(2025, 11))
	assert.Equal(t, "K", LastColumn())
}
