package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/core"
)

func TestNewYear(t *testing.T) {
	y := NewYear(2025, []int{1, 2, 3})
	require.Len(t, y.Months, core.MonthsPerYear)
	for i, m := range y.Months {
		assert.Equal(t, core.MonthNames[i], m.Month)
		assert.Equal(t, i, m.MonthIndex)
		assert.Equal(t, []int{1, 2, 3}, m.MemberIDs())
	}
	assert.Equal(t, y, NewCalculator(0.02).Year(y), "recalculating an empty year is a no-op")
}

func TestNewYearRecalculatedIsZero(t *testing.T) {
	y := NewCalculator(0.02).Year(NewYear(2025, []int{4, 5}))
	for _, m := range y.Months {
		assert.Zero(t, m.TotalSaving)
		assert.Zero(t, m.TotalCumulative)
		for _, e := range m.Members {
			assert.Equal(t, core.MemberMonthEntry{MemberID: e.MemberID}, e)
		}
	}
}

func TestAddMember(t *testing.T) {
	c := NewCalculator(0.02)
	y := c.Year(scenarioYear())
	got := AddMember(y, 20)

	for i, m := range got.Months {
		e, ok := m.Find(20)
		require.True(t, ok, "month %d", i)
		assert.Equal(t, core.MemberMonthEntry{MemberID: 20}, e)
		assert.Len(t, m.Members, len(y.Months[i].Members)+1)
	}
	assert.Len(t, y.Months[0].Members, 3, "input untouched")
	assert.Equal(t, got, AddMember(got, 20), "adding twice is a no-op")
}

func TestRemoveMember(t *testing.T) {
	c := NewCalculator(0.02)
	y := c.Year(scenarioYear())
	got := RemoveMember(y, 12)

	for i, m := range got.Months {
		_, ok := m.Find(12)
		assert.False(t, ok, "month %d still has member 12", i)
		var saving, cumulative int64
		for _, e := range m.Members {
			saving += e.Saving
			cumulative += e.Cumulative
		}
		assert.Equal(t, saving, m.TotalSaving)
		assert.Equal(t, cumulative, m.TotalCumulative)
	}
	assert.Equal(t, got, c.Year(got), "remaining chains are unaffected")
	_, stillThere := y.Months[0].Find(12)
	assert.True(t, stillThere, "input untouched")
}

func TestNormalize(t *testing.T) {
	y := core.YearLedger{Year: 2024, Months: []core.MonthRecord{
		{Month: "Jan", MonthIndex: 7, Members: []core.MemberMonthEntry{raw(1, 100, 0, 0)}},
	}}
	got := Normalize(y)
	require.Len(t, got.Months, 12)
	assert.Equal(t, 0, got.Months[0].MonthIndex)
	assert.Equal(t, "Jan", got.Months[0].Month)
	assert.Equal(t, "February", got.Months[1].Month)
	assert.NotNil(t, got.Months[11].Members)
}
