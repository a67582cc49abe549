package seed

import (
	"shgbook/internal/core"
	"shgbook/internal/ledger"
)

// SampleYear is the financial year carried by the bundled sample.
const SampleYear = 2024

// Sample returns the bundled demonstration group: fourteen members saving 500
// a month from January to June 2024, with loans in May and June.
func Sample() Seed {
	group := core.GroupInfo{
		NameTA:        "ஸ்ரீ அன்னை மகளிர் சுய உதவி குழு",
		NameEN:        "Shree Annai Magalir Suya Uthavi Kulu",
		Type:          "Women Self Help Group (SHG)",
		StartDate:     "10.01.2019",
		MonthlySaving: 500,
		TotalMembers:  14,
		InterestRate:  0.02,
	}
	members := []core.Member{
		{ID: 1, Name: "M. Susila", NameTA: "M . சுசிலா"},
		{ID: 2, Name: "R. Anithatamilpriya", NameTA: "R . அனிதாதமிழ்பிரியா"},
		{ID: 3, Name: "K. Selvanayagi", NameTA: "K . செல்வநாயகி"},
		{ID: 4, Name: "K. Soundhari", NameTA: "K . சௌந்தரி"},
		{ID: 5, Name: "V. Vijaya", NameTA: "V . விஜயா"},
		{ID: 6, Name: "K. Pinky", NameTA: "k . பிங்கி"},
		{ID: 7, Name: "R. Mallika", NameTA: "R . மல்லிகா"},
		{ID: 8, Name: "V. Radhika", NameTA: "V . ராதிகா"},
		{ID: 9, Name: "P. Kalyani", NameTA: "P . கல்யாணி"},
		{ID: 10, Name: "P. Lakshmi", NameTA: "P . லட்சுமி"},
		{ID: 11, Name: "R. Vijayalakshmi", NameTA: "R . விஜயலட்சுமி"},
		{ID: 12, Name: "K. Jayalakshmi", NameTA: "K . ஜெயலட்சுமி"},
		{ID: 13, Name: "B. Tripurasundhari", NameTA: "B . திரிபுரசுந்தரி"},
		{ID: 14, Name: "V. Srinidhi", NameTA: "v . ஸ்ரீநிதி"},
	}
	s := Seed{Group: group, Members: members}

	y := ledger.NewYear(SampleYear, s.MemberIDs())
	for i := range y.Months {
		for j := range y.Months[i].Members {
			e := &y.Months[i].Members[j]
			if i < 6 {
				e.Saving = 500
			}
			switch {
			case i == 4 && e.MemberID == 12:
				e.LoanTaken, e.LoanRepayment = 10000, 1000
			case i == 5 && e.MemberID == 8:
				e.LoanTaken = 18000
			case i == 5 && e.MemberID == 13:
				e.LoanTaken = 7000
			}
		}
	}
	s.Years = []core.YearLedger{ledger.NewCalculator(group.InterestRate).Year(y)}
	return s
}
