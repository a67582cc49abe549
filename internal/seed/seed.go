// Package seed provides the bundled sample group and loads seed files.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"shgbook/internal/core"
	"shgbook/internal/ledger"
)

// Seed is the initial content of an empty group.
type Seed struct {
	Group   core.GroupInfo
	Members []core.Member
	Years   []core.YearLedger
}

type fileMember struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	NameTA string `yaml:"nameTA"`
}

type fileMonth struct {
	Index   int            `yaml:"index"`
	Entries []fileRawEntry `yaml:"entries"`
	// Saving applies to every member without an explicit entry.
	Saving int64 `yaml:"saving"`
}

type fileRawEntry struct {
	Member    int   `yaml:"member"`
	Saving    int64 `yaml:"saving"`
	Loan      int64 `yaml:"loan"`
	Repayment int64 `yaml:"repayment"`
}

type fileYear struct {
	Year   int         `yaml:"year"`
	Months []fileMonth `yaml:"months"`
}

type file struct {
	Group struct {
		NameTA        string  `yaml:"nameTA"`
		NameEN        string  `yaml:"nameEN"`
		Type          string  `yaml:"type"`
		StartDate     string  `yaml:"startDate"`
		MonthlySaving int64   `yaml:"monthlySaving"`
		InterestRate  float64 `yaml:"interestRate"`
	} `yaml:"group"`
	Members []fileMember `yaml:"members"`
	Years   []fileYear   `yaml:"years"`
}

// LoadFile reads a YAML seed. Years list raw inputs only; derived fields are
// computed with the group's interest rate.
func LoadFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML seed content.
func Parse(data []byte) (Seed, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	rate := f.Group.InterestRate
	if err := core.ValidateInterestRate(rate); err != nil {
		return Seed{}, err
	}
	s := Seed{
		Group: core.GroupInfo{
			NameTA:        f.Group.NameTA,
			NameEN:        f.Group.NameEN,
			Type:          f.Group.Type,
			StartDate:     f.Group.StartDate,
			MonthlySaving: f.Group.MonthlySaving,
			TotalMembers:  len(f.Members),
			InterestRate:  rate,
		},
	}
	ids := make([]int, 0, len(f.Members))
	seen := map[int]bool{}
	for _, m := range f.Members {
		if err := core.ValidateMemberID(m.ID); err != nil {
			return Seed{}, err
		}
		if seen[m.ID] {
			return Seed{}, core.Invalid("Duplicate member id %d in seed", m.ID)
		}
		seen[m.ID] = true
		name, err := core.ValidateName("Member name", m.Name, core.NameRule{})
		if err != nil {
			return Seed{}, err
		}
		nameTA, err := core.ValidateName("Member name (Tamil)", m.NameTA, core.NameRule{Optional: true})
		if err != nil {
			return Seed{}, err
		}
		if nameTA == "" {
			nameTA = name
		}
		s.Members = append(s.Members, core.Member{ID: m.ID, Name: name, NameTA: nameTA})
		ids = append(ids, m.ID)
	}

	calc := ledger.NewCalculator(rate)
	for _, fy := range f.Years {
		if err := core.ValidateYear(fy.Year); err != nil {
			return Seed{}, err
		}
		y := ledger.NewYear(fy.Year, ids)
		for _, fm := range fy.Months {
			if err := core.ValidateMonthIndex(fm.Index); err != nil {
				return Seed{}, err
			}
			month := &y.Months[fm.Index]
			for i := range month.Members {
				month.Members[i].Saving = fm.Saving
			}
			for _, e := range fm.Entries {
				raw := core.RawEntry{MemberID: e.Member, Saving: e.Saving, LoanTaken: e.Loan, LoanRepayment: e.Repayment}
				if err := core.ValidateRaw(raw, core.DefaultMaxAmount); err != nil {
					return Seed{}, err
				}
				idx := indexOf(month.Members, e.Member)
				if idx < 0 {
					return Seed{}, core.NotFound("Member #%d not found in seed members", e.Member)
				}
				month.Members[idx] = raw.Entry()
			}
		}
		s.Years = append(s.Years, calc.Year(y))
	}
	return s, nil
}

func indexOf(entries []core.MemberMonthEntry, memberID int) int {
	for i, e := range entries {
		if e.MemberID == memberID {
			return i
		}
	}
	return -1
}

// MemberIDs lists the seed's member ids in order.
func (s Seed) MemberIDs() []int {
	ids := make([]int, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.ID
	}
	return ids
}
