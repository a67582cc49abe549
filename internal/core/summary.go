package core

// YearSummary aggregates one recalculated YearLedger.
type YearSummary struct {
	Year               int   `json:"year"`
	TotalSavings       int64 `json:"totalSavings"`
	TotalLoans         int64 `json:"totalLoans"`
	TotalInterest      int64 `json:"totalInterest"`
	TotalRepayments    int64 `json:"totalRepayments"`
	ActiveSavingMonths int   `json:"activeSavingMonths"`
	LoansIssued        int   `json:"loansIssued"`
	FinalCumulative    int64 `json:"finalCumulative"`
}

// MemberTotals is one member's aggregate over a year.
type MemberTotals struct {
	MemberID      int   `json:"memberId"`
	TotalSaved    int64 `json:"totalSaved"`
	Cumulative    int64 `json:"cumulative"`
	TotalBorrowed int64 `json:"totalBorrowed"`
	TotalRepaid   int64 `json:"totalRepaid"`
	TotalInterest int64 `json:"totalInterest"`
	Balance       int64 `json:"balance"`
}
