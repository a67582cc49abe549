package core

import "time"

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"

	// SystemUser is recorded when no actor is known.
	SystemUser = "system"
)

type (
	Role   string
	Status string

	// Stamp carries the audit fields every stored record gets.
	Stamp struct {
		CreatedBy  string    `json:"createdBy,omitempty"`
		CreatedOn  time.Time `json:"createdOn"`
		ModifiedBy string    `json:"modifiedBy,omitempty"`
		ModifiedOn time.Time `json:"modifiedOn"`
	}

	Member struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		NameTA string `json:"nameTA"`
		Stamp
	}

	GroupInfo struct {
		NameTA        string  `json:"nameTA"`
		NameEN        string  `json:"nameEN"`
		Type          string  `json:"type"`
		StartDate     string  `json:"startDate"`
		MonthlySaving int64   `json:"monthlySaving"`
		TotalMembers  int     `json:"totalMembers"`
		InterestRate  float64 `json:"interestRate"`
		IsClosed      bool    `json:"isClosed"`
		Stamp
	}

	// GroupPatch is a partial update of GroupInfo; nil fields are left alone.
	GroupPatch struct {
		NameTA        *string  `json:"nameTA,omitempty"`
		NameEN        *string  `json:"nameEN,omitempty"`
		Type          *string  `json:"type,omitempty"`
		StartDate     *string  `json:"startDate,omitempty"`
		MonthlySaving *int64   `json:"monthlySaving,omitempty"`
		TotalMembers  *int     `json:"totalMembers,omitempty"`
		InterestRate  *float64 `json:"interestRate,omitempty"`
		IsClosed      *bool    `json:"isClosed,omitempty"`
	}

	User struct {
		UID        string `json:"uid"`
		Username   string `json:"username"`
		FullName   string `json:"fullName"`
		FullNameTA string `json:"fullNameTA,omitempty"`
		Email      string `json:"email,omitempty"`
		Role       Role   `json:"role"`
		Status     Status `json:"status"`
		Stamp
	}

	// UserPatch is a partial profile update. Passwords never travel through it.
	UserPatch struct {
		Username   *string `json:"username,omitempty"`
		FullName   *string `json:"fullName,omitempty"`
		FullNameTA *string `json:"fullNameTA,omitempty"`
		Email      *string `json:"email,omitempty"`
		Role       *string `json:"role,omitempty"`
		Status     *string `json:"status,omitempty"`
	}

	// Actor is the identity fact supplied by the session layer.
	Actor struct {
		UID      string `json:"uid"`
		Username string `json:"username"`
		Role     Role   `json:"role"`
		Status   Status `json:"status"`
	}
)

// Name returns the username, or SystemUser for anonymous actors.
func (a Actor) Name() string {
	if a.Username == "" {
		return SystemUser
	}
	return a.Username
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsActive() bool { return a.Status == StatusActive }

// ActorFor builds the session fact for a stored user profile.
func ActorFor(u User) Actor {
	return Actor{UID: u.UID, Username: u.Username, Role: u.Role, Status: u.Status}
}

// Created stamps a new record.
func Created(username string, now time.Time) Stamp {
	if username == "" {
		username = SystemUser
	}
	now = now.UTC()
	return Stamp{CreatedBy: username, CreatedOn: now, ModifiedBy: username, ModifiedOn: now}
}

// Touch updates the modification fields, filling creation fields if missing.
func (s Stamp) Touch(username string, now time.Time) Stamp {
	if username == "" {
		username = SystemUser
	}
	now = now.UTC()
	if s.CreatedBy == "" {
		s.CreatedBy = username
	}
	if s.CreatedOn.IsZero() {
		s.CreatedOn = now
	}
	s.ModifiedBy = username
	s.ModifiedOn = now
	return s
}

// DisplayName prefers the secondary-language name used in activity summaries.
func (m Member) DisplayName() string {
	if m.NameTA != "" {
		return m.NameTA
	}
	return m.Name
}

// CurrentFinancialYear returns the April-start financial year containing t.
func CurrentFinancialYear(t time.Time) int {
	if t.Month() >= time.April {
		return t.Year()
	}
	return t.Year() - 1
}
