package core

import "encoding/json"

// MonthsPerYear is the fixed length of a YearLedger.
const MonthsPerYear = 12

// MonthNames are the display names of months by index.
var MonthNames = [MonthsPerYear]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type (
	// MemberMonthEntry is one member's state for one month. Saving, LoanTaken
	// and LoanRepayment are raw inputs; every other field is derived.
	MemberMonthEntry struct {
		MemberID        int   `json:"memberId"`
		Saving          int64 `json:"saving"`
		LoanTaken       int64 `json:"loanTaken"`
		LoanRepayment   int64 `json:"loanRepayment"`
		Cumulative      int64 `json:"cumulative"`
		OldLoan         int64 `json:"oldLoan"`
		OldInterest     int64 `json:"oldInterest"`
		CurrentInterest int64 `json:"currentInterest"`
		Balance         int64 `json:"balance"`
	}

	// RawEntry holds the caller-supplied fields of a data-entry operation.
	RawEntry struct {
		MemberID      int   `json:"memberId"`
		Saving        int64 `json:"saving"`
		LoanTaken     int64 `json:"loanTaken"`
		LoanRepayment int64 `json:"loanRepayment"`
	}

	// MonthInput is the raw data of one month as entered or imported.
	MonthInput struct {
		MonthIndex int        `json:"monthIndex"`
		Entries    []RawEntry `json:"entries"`
	}

	MonthRecord struct {
		Month           string             `json:"month"`
		MonthIndex      int                `json:"monthIndex"`
		Members         []MemberMonthEntry `json:"members"`
		TotalSaving     int64              `json:"totalSaving"`
		TotalCumulative int64              `json:"totalCumulative"`
	}

	YearLedger struct {
		Year   int           `json:"year"`
		Months []MonthRecord `json:"months"`
		Stamp
	}
)

// Interest is the legacy name of CurrentInterest.
func (e MemberMonthEntry) Interest() int64 { return e.CurrentInterest }

// LoanBalance is the legacy name of Balance.
func (e MemberMonthEntry) LoanBalance() int64 { return e.Balance }

// Raw returns only the caller-supplied fields.
func (e MemberMonthEntry) Raw() RawEntry {
	return RawEntry{MemberID: e.MemberID, Saving: e.Saving, LoanTaken: e.LoanTaken, LoanRepayment: e.LoanRepayment}
}

// Entry returns a fresh entry carrying only raw inputs.
func (r RawEntry) Entry() MemberMonthEntry {
	return MemberMonthEntry{MemberID: r.MemberID, Saving: r.Saving, LoanTaken: r.LoanTaken, LoanRepayment: r.LoanRepayment}
}

type entryWire struct {
	MemberID        int    `json:"memberId"`
	Saving          int64  `json:"saving"`
	LoanTaken       int64  `json:"loanTaken"`
	LoanRepayment   int64  `json:"loanRepayment"`
	Cumulative      int64  `json:"cumulative"`
	OldLoan         int64  `json:"oldLoan"`
	OldInterest     int64  `json:"oldInterest"`
	CurrentInterest *int64 `json:"currentInterest,omitempty"`
	Balance         *int64 `json:"balance,omitempty"`
	Interest        *int64 `json:"interest,omitempty"`
	LoanBalance     *int64 `json:"loanBalance,omitempty"`
}

// MarshalJSON writes the legacy interest and loanBalance fields alongside the
// canonical ones so older readers of stored documents keep working.
func (e MemberMonthEntry) MarshalJSON() ([]byte, error) {
	ci, bal := e.CurrentInterest, e.Balance
	return json.Marshal(entryWire{
		MemberID:        e.MemberID,
		Saving:          e.Saving,
		LoanTaken:       e.LoanTaken,
		LoanRepayment:   e.LoanRepayment,
		Cumulative:      e.Cumulative,
		OldLoan:         e.OldLoan,
		OldInterest:     e.OldInterest,
		CurrentInterest: &ci,
		Balance:         &bal,
		Interest:        &ci,
		LoanBalance:     &bal,
	})
}

// UnmarshalJSON reads documents written by older versions that only carried
// the legacy field names.
func (e *MemberMonthEntry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = MemberMonthEntry{
		MemberID:      w.MemberID,
		Saving:        w.Saving,
		LoanTaken:     w.LoanTaken,
		LoanRepayment: w.LoanRepayment,
		Cumulative:    w.Cumulative,
		OldLoan:       w.OldLoan,
		OldInterest:   w.OldInterest,
	}
	switch {
	case w.CurrentInterest != nil:
		e.CurrentInterest = *w.CurrentInterest
	case w.Interest != nil:
		e.CurrentInterest = *w.Interest
	}
	switch {
	case w.Balance != nil:
		e.Balance = *w.Balance
	case w.LoanBalance != nil:
		e.Balance = *w.LoanBalance
	}
	return nil
}

// Clone returns a deep copy so callers can mutate the result freely.
func (y YearLedger) Clone() YearLedger {
	out := y
	if y.Months == nil {
		return out
	}
	out.Months = make([]MonthRecord, len(y.Months))
	for i, m := range y.Months {
		if m.Members != nil {
			members := make([]MemberMonthEntry, len(m.Members))
			copy(members, m.Members)
			m.Members = members
		}
		out.Months[i] = m
	}
	return out
}

// Month returns the record at monthIndex, if present.
func (y YearLedger) Month(monthIndex int) (MonthRecord, bool) {
	if monthIndex < 0 || monthIndex >= len(y.Months) {
		return MonthRecord{}, false
	}
	return y.Months[monthIndex], true
}

// Find returns the entry for memberID in the month.
func (m MonthRecord) Find(memberID int) (MemberMonthEntry, bool) {
	for _, e := range m.Members {
		if e.MemberID == memberID {
			return e, true
		}
	}
	return MemberMonthEntry{}, false
}

// MemberIDs lists member ids in entry order.
func (m MonthRecord) MemberIDs() []int {
	ids := make([]int, len(m.Members))
	for i, e := range m.Members {
		ids[i] = e.MemberID
	}
	return ids
}
