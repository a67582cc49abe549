package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/core"
)

func TestSummarize(t *testing.T) {
	y := NewCalculator(0.02).Year(scenarioYear())
	s := Summarize(y)

	// Savings: months 0-3 three members, May three members, June two members.
	assert.Equal(t, core.YearSummary{
		Year:               2024,
		TotalSavings:       500*3*5 + 500,
		TotalLoans:         10000 + 18000 + 7000,
		TotalInterest:      200 + 360 + 140,
		TotalRepayments:    1000,
		ActiveSavingMonths: 6,
		LoansIssued:        3,
		FinalCumulative:    3000 + 2500 + 2500,
	}, s)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, core.YearSummary{Year: 2030}, Summarize(core.YearLedger{Year: 2030}))
}

func TestMemberSummary(t *testing.T) {
	y := NewCalculator(0.02).Year(scenarioYear())

	got, ok := MemberSummary(y, 12)
	require.True(t, ok)
	assert.Equal(t, core.MemberTotals{
		MemberID:      12,
		TotalSaved:    2500,
		Cumulative:    2500,
		TotalBorrowed: 10000,
		TotalRepaid:   1000,
		TotalInterest: 200,
		Balance:       9000,
	}, got)

	_, ok = MemberSummary(y, 99)
	assert.False(t, ok)
}

func TestMemberSummaries(t *testing.T) {
	y := NewCalculator(0.02).Year(scenarioYear())
	all := MemberSummaries(y)
	require.Len(t, all, 3)
	assert.Equal(t, []int{8, 12, 13}, []int{all[0].MemberID, all[1].MemberID, all[2].MemberID})

	var total int64
	for _, m := range all {
		total += m.Cumulative
	}
	assert.Equal(t, Summarize(y).FinalCumulative, total)
}

func TestSummarizeUsesLegacyInterest(t *testing.T) {
	var e core.MemberMonthEntry
	require.NoError(t, e.UnmarshalJSON([]byte(`{"memberId":1,"loanTaken":1000,"interest":20,"loanBalance":1000}`)))
	y := core.YearLedger{Year: 2020, Months: []core.MonthRecord{{MonthIndex: 0, Members: []core.MemberMonthEntry{e}}}}
	assert.Equal(t, int64(20), Summarize(y).TotalInterest)
}
