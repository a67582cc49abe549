package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/core"
)

func TestReplaceMonth(t *testing.T) {
	c := NewCalculator(0.02)
	y := c.Year(scenarioYear())

	got := ReplaceMonth(y, 2, []core.RawEntry{{MemberID: 8, Saving: 700}, {MemberID: 12}, {MemberID: 13, LoanTaken: 50}})
	assert.Equal(t, core.MemberMonthEntry{MemberID: 8, Saving: 700}, got.Months[2].Members[0])
	assert.Equal(t, y.Months[3], got.Months[3], "other months untouched before recalculation")
	assert.Equal(t, int64(500), y.Months[2].Members[0].Saving, "input untouched")

	got = c.Year(got)
	e, _ := got.Months[3].Find(8)
	assert.Equal(t, int64(500+500+700+500), e.Cumulative)
}

func TestDiffMonth(t *testing.T) {
	old := core.MonthRecord{Members: []core.MemberMonthEntry{raw(1, 500, 0, 0), raw(2, 500, 1000, 0), raw(3, 500, 0, 0)}}
	inputs := []core.RawEntry{
		{MemberID: 1, Saving: 500},
		{MemberID: 2, Saving: 600, LoanTaken: 0, LoanRepayment: 100},
		{MemberID: 3, Saving: 500},
		{MemberID: 4, Saving: 250},
	}
	names := map[int]string{2: "R . அனிதா"}
	summary, changes := DiffMonth(old, inputs, func(id int) string { return names[id] })

	assert.Equal(t, core.DataEntrySummary{TotalSaving: 1850, TotalNewLoan: 0, TotalRepayment: 100, MembersChanged: 1}, summary)
	require.Len(t, changes, 1)
	assert.Equal(t, core.MemberChange{ID: 2, Name: "R . அனிதா", Changes: "saving: 500→600, loan: 1000→0, repay: 0→100"}, changes[0])
}

func TestDiffMonthCapsChangedMembers(t *testing.T) {
	var old core.MonthRecord
	var inputs []core.RawEntry
	for id := 1; id <= 15; id++ {
		old.Members = append(old.Members, raw(id, 0, 0, 0))
		inputs = append(inputs, core.RawEntry{MemberID: id, Saving: 100})
	}
	summary, changes := DiffMonth(old, inputs, nil)
	assert.Equal(t, 15, summary.MembersChanged)
	require.Len(t, changes, core.MaxChangedMembers)
	assert.Equal(t, fmt.Sprintf("#%d", 1), changes[0].Name)
}
