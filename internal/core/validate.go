package core

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinYear = 1901
	MaxYear = 2099

	PersonNameMax = 120
	GroupNameMax  = 150
	GroupTypeMax  = 120
	StartDateMax  = 40
	EmailMax      = 120

	MaxInterestRate = 100
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,30}$`)

func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return Invalid("Year must be an integer between %d and %d", MinYear, MaxYear)
	}
	return nil
}

func ValidateMonthIndex(i int) error {
	if i < 0 || i >= MonthsPerYear {
		return Invalid("Month index must be between 0 and %d", MonthsPerYear-1)
	}
	return nil
}

func ValidateMemberID(id int) error {
	if id <= 0 {
		return Invalid("Member id must be a positive integer")
	}
	return nil
}

// ValidateRaw checks the three caller-supplied fields of a data-entry row.
func ValidateRaw(r RawEntry, max int64) error {
	if err := ValidateMemberID(r.MemberID); err != nil {
		return err
	}
	if err := CheckAmount("Monthly saving", r.Saving, max); err != nil {
		return err
	}
	if err := CheckAmount("New loan", r.LoanTaken, max); err != nil {
		return err
	}
	return CheckAmount("Repayment", r.LoanRepayment, max)
}

// NameRule configures ValidateName.
type NameRule struct {
	Optional bool
	Max      int
}

// ValidateName trims, strips markup and bounds a display name.
func ValidateName(field, value string, rule NameRule) (string, error) {
	max := rule.Max
	if max <= 0 {
		max = PersonNameMax
	}
	trimmed := strings.TrimSpace(value)
	for _, r := range trimmed {
		if r < 32 || r == 127 {
			return "", Invalid("%s contains invalid characters", field)
		}
	}
	trimmed = StripMarkup(trimmed)
	if trimmed == "" {
		if rule.Optional {
			return "", nil
		}
		return "", Invalid("%s is required", field)
	}
	if utf8.RuneCountInString(trimmed) > max {
		return "", Invalid("%s must be at most %d characters", field, max)
	}
	return trimmed, nil
}

func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ValidateUsername(s string) (string, error) {
	u := NormalizeUsername(s)
	if !usernamePattern.MatchString(u) {
		return "", Invalid("Username must be 3-30 chars and contain only lowercase letters, numbers, ., _, -")
	}
	return u, nil
}

func ValidateRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleMember:
		return r, nil
	default:
		return "", Invalid(`Role must be either "admin" or "member"`)
	}
}

func ValidateStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusDisabled:
		return st, nil
	default:
		return "", Invalid(`Status must be either "active" or "disabled"`)
	}
}

func ValidateEmail(s string) (string, error) {
	email := strings.ToLower(CleanText(s, "", EmailMax))
	if email != "" && !strings.Contains(email, "@") {
		return "", Invalid("Invalid email address")
	}
	return email, nil
}

func ValidateInterestRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Invalid("Interest rate must be a finite number")
	}
	if rate < 0 {
		return Invalid("Interest rate cannot be negative")
	}
	if rate > MaxInterestRate {
		return Invalid("Interest rate exceeds the allowed limit (%d)", MaxInterestRate)
	}
	return nil
}

// ValidateGroupPatch normalises a partial group update in place.
func ValidateGroupPatch(p *GroupPatch, maxAmount int64) error {
	empty := true
	name := func(field string, v **string, max int) error {
		if *v == nil {
			return nil
		}
		empty = false
		s, err := ValidateName(field, **v, NameRule{Optional: true, Max: max})
		if err != nil {
			return err
		}
		*v = &s
		return nil
	}
	if err := name("Group name (Tamil)", &p.NameTA, GroupNameMax); err != nil {
		return err
	}
	if err := name("Group name (English)", &p.NameEN, GroupNameMax); err != nil {
		return err
	}
	if err := name("Group type", &p.Type, GroupTypeMax); err != nil {
		return err
	}
	if p.StartDate != nil {
		empty = false
		s := CleanText(*p.StartDate, "", StartDateMax)
		p.StartDate = &s
	}
	if p.MonthlySaving != nil {
		empty = false
		if err := CheckAmount("Monthly saving", *p.MonthlySaving, maxAmount); err != nil {
			return err
		}
	}
	if p.TotalMembers != nil {
		empty = false
		if *p.TotalMembers < 0 {
			return Invalid("totalMembers must be a non-negative integer")
		}
	}
	if p.InterestRate != nil {
		empty = false
		if err := ValidateInterestRate(*p.InterestRate); err != nil {
			return err
		}
	}
	if p.IsClosed != nil {
		empty = false
	}
	if empty {
		return Invalid("No valid group fields to update")
	}
	return nil
}

// Apply merges a validated patch into g.
func (p GroupPatch) Apply(g GroupInfo) GroupInfo {
	if p.NameTA != nil {
		g.NameTA = *p.NameTA
	}
	if p.NameEN != nil {
		g.NameEN = *p.NameEN
	}
	if p.Type != nil {
		g.Type = *p.Type
	}
	if p.StartDate != nil {
		g.StartDate = *p.StartDate
	}
	if p.MonthlySaving != nil {
		g.MonthlySaving = *p.MonthlySaving
	}
	if p.TotalMembers != nil {
		g.TotalMembers = *p.TotalMembers
	}
	if p.InterestRate != nil {
		g.InterestRate = *p.InterestRate
	}
	if p.IsClosed != nil {
		g.IsClosed = *p.IsClosed
	}
	return g
}

// Fields lists the names of the fields the patch touches.
func (p GroupPatch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.NameTA != nil, "nameTA")
	add(p.NameEN != nil, "nameEN")
	add(p.Type != nil, "type")
	add(p.StartDate != nil, "startDate")
	add(p.MonthlySaving != nil, "monthlySaving")
	add(p.TotalMembers != nil, "totalMembers")
	add(p.InterestRate != nil, "interestRate")
	add(p.IsClosed != nil, "isClosed")
	return out
}

// ValidateUserPatch normalises a profile update. Partial patches may leave
// any field nil; full creates must pass partial=false.
func ValidateUserPatch(p *UserPatch, partial bool) error {
	empty := true
	if !partial || p.Username != nil {
		empty = false
		u, err := ValidateUsername(deref(p.Username))
		if err != nil {
			return err
		}
		p.Username = &u
	}
	if !partial || p.FullName != nil {
		empty = false
		n, err := ValidateName("Full name", deref(p.FullName), NameRule{})
		if err != nil {
			return err
		}
		p.FullName = &n
	}
	if !partial || p.FullNameTA != nil {
		empty = false
		n, err := ValidateName("Full name (Tamil)", deref(p.FullNameTA), NameRule{Optional: true})
		if err != nil {
			return err
		}
		p.FullNameTA = &n
	}
	if !partial || p.Role != nil {
		empty = false
		raw := deref(p.Role)
		if raw == "" && !partial {
			raw = string(RoleMember)
		}
		r, err := ValidateRole(raw)
		if err != nil {
			return err
		}
		s := string(r)
		p.Role = &s
	}
	if !partial || p.Status != nil {
		empty = false
		raw := deref(p.Status)
		if raw == "" && !partial {
			raw = string(StatusActive)
		}
		st, err := ValidateStatus(raw)
		if err != nil {
			return err
		}
		s := string(st)
		p.Status = &s
	}
	if p.Email != nil {
		empty = false
		e, err := ValidateEmail(*p.Email)
		if err != nil {
			return err
		}
		p.Email = &e
	}
	if empty {
		return Invalid("No valid user fields to update")
	}
	return nil
}

// Apply merges a validated patch into u.
func (p UserPatch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.FullNameTA != nil {
		u.FullNameTA = *p.FullNameTA
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = Role(*p.Role)
	}
	if p.Status != nil {
		u.Status = Status(*p.Status)
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
