package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMemberMonthEntryJSONWritesLegacyAliases(t *testing.T) {
	e := MemberMonthEntry{MemberID: 12, Saving: 500, LoanTaken: 10000, LoanRepayment: 1000, Cumulative: 2500, CurrentInterest: 200, Balance: 9000}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"currentInterest":200`, `"interest":200`, `"balance":9000`, `"loanBalance":9000`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %s in %s", want, data)
		}
	}
}

func TestMemberMonthEntryJSONReadsLegacyOnlyDocuments(t *testing.T) {
	var e MemberMonthEntry
	if err := json.Unmarshal([]byte(`{"memberId":3,"saving":500,"interest":40,"loanBalance":-200}`), &e); err != nil {
		t.Fatal(err)
	}
	if e.CurrentInterest != 40 || e.Balance != -200 || e.Interest() != 40 || e.LoanBalance() != -200 {
		t.Errorf("legacy fields not honoured: %+v", e)
	}

	var both MemberMonthEntry
	if err := json.Unmarshal([]byte(`{"memberId":3,"currentInterest":10,"interest":99,"balance":5,"loanBalance":99}`), &both); err != nil {
		t.Fatal(err)
	}
	if both.CurrentInterest != 10 || both.Balance != 5 {
		t.Errorf("canonical fields must win: %+v", both)
	}
}

func TestYearLedgerClone(t *testing.T) {
	y := YearLedger{Year: 2024, Months: []MonthRecord{{Members: []MemberMonthEntry{{MemberID: 1, Saving: 5}}}}}
	c := y.Clone()
	c.Months[0].Members[0].Saving = 99
	if y.Months[0].Members[0].Saving != 5 {
		t.Error("clone shares member slices")
	}
	if _, ok := y.Month(12); ok {
		t.Error("month 12 should not exist")
	}
}
