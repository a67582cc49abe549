package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityKind is the closed set of audit record types.
type ActivityKind string

const (
	ActivityLogin           ActivityKind = "login"
	ActivityLogout          ActivityKind = "logout"
	ActivityDataEntry       ActivityKind = "data_entry"
	ActivityYearAdd         ActivityKind = "year_add"
	ActivityYearRecalculate ActivityKind = "year_recalculate"
	ActivityYearImport      ActivityKind = "year_import"
	ActivityMemberAdd       ActivityKind = "member_add"
	ActivityMemberEdit      ActivityKind = "member_edit"
	ActivityMemberRemove    ActivityKind = "member_remove"
	ActivityUserCreate      ActivityKind = "user_create"
	ActivityUserUpdate      ActivityKind = "user_update"
	ActivityUserDeactivate  ActivityKind = "user_deactivate"
	ActivityUserReactivate  ActivityKind = "user_reactivate"
	ActivityPasswordChange  ActivityKind = "password_change"
	ActivityGroupUpdate     ActivityKind = "group_update"
	ActivityGroupClose      ActivityKind = "group_close"
	ActivityGroupReopen     ActivityKind = "group_reopen"
)

const (
	activityTypeMax   = 60
	activityUserMax   = 60
	activityDetailMax = 400

	// MaxChangedMembers caps the per-member diff list of a data-entry record.
	MaxChangedMembers = 10
)

// ActivityPayload is implemented only by the payload types in this file.
type ActivityPayload interface {
	Kind() ActivityKind
	Detail() string
	activityPayload()
}

type (
	DataEntrySummary struct {
		TotalSaving    int64 `json:"totalSaving"`
		TotalNewLoan   int64 `json:"totalNewLoan"`
		TotalRepayment int64 `json:"totalRepayment"`
		MembersChanged int   `json:"membersChanged"`
	}

	MemberChange struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Changes string `json:"changes"`
	}

	DataEntryActivity struct {
		Year           int              `json:"year"`
		MonthIndex     int              `json:"monthIndex"`
		Month          string           `json:"month"`
		Summary        DataEntrySummary `json:"summary"`
		ChangedMembers []MemberChange   `json:"changedMembers"`
	}

	// YearActivity covers year_add, year_recalculate and year_import.
	YearActivity struct {
		Action ActivityKind `json:"-"`
		Year   int          `json:"year"`
	}

	// MemberActivity covers member_add, member_edit and member_remove.
	MemberActivity struct {
		Action   ActivityKind `json:"-"`
		MemberID int          `json:"memberId"`
		Name     string       `json:"target"`
	}

	// UserActivity covers the user_* kinds and password_change.
	UserActivity struct {
		Action   ActivityKind `json:"-"`
		UID      string       `json:"uid"`
		Username string       `json:"target"`
	}

	// GroupActivity covers group_update, group_close and group_reopen.
	GroupActivity struct {
		Action ActivityKind `json:"-"`
		Fields []string     `json:"fields,omitempty"`
	}

	// SessionActivity covers login and logout.
	SessionActivity struct {
		Action ActivityKind `json:"-"`
	}
)

func (DataEntryActivity) activityPayload() {}
func (YearActivity) activityPayload()      {}
func (MemberActivity) activityPayload()    {}
func (UserActivity) activityPayload()      {}
func (GroupActivity) activityPayload()     {}
func (SessionActivity) activityPayload()   {}

func (DataEntryActivity) Kind() ActivityKind { return ActivityDataEntry }
func (a YearActivity) Kind() ActivityKind    { return a.Action }
func (a MemberActivity) Kind() ActivityKind  { return a.Action }
func (a UserActivity) Kind() ActivityKind    { return a.Action }
func (a GroupActivity) Kind() ActivityKind   { return a.Action }
func (a SessionActivity) Kind() ActivityKind { return a.Action }

func (a DataEntryActivity) Detail() string {
	return fmt.Sprintf("Updated %s %d data", a.Month, a.Year)
}

func (a YearActivity) Detail() string {
	switch a.Action {
	case ActivityYearRecalculate:
		return fmt.Sprintf("Recalculated year %d", a.Year)
	case ActivityYearImport:
		return fmt.Sprintf("Imported year %d", a.Year)
	default:
		return fmt.Sprintf("Added new year %d", a.Year)
	}
}

func (a MemberActivity) Detail() string {
	switch a.Action {
	case ActivityMemberEdit:
		return fmt.Sprintf("Edited member %q", a.Name)
	case ActivityMemberRemove:
		return fmt.Sprintf("Removed member #%d", a.MemberID)
	default:
		return fmt.Sprintf("Added member %q", a.Name)
	}
}

func (a UserActivity) Detail() string {
	switch a.Action {
	case ActivityUserUpdate:
		return fmt.Sprintf("Updated user %q", a.Username)
	case ActivityUserDeactivate:
		return fmt.Sprintf("Deactivated user %q", a.Username)
	case ActivityUserReactivate:
		return fmt.Sprintf("Reactivated user %q", a.Username)
	case ActivityPasswordChange:
		return "Changed password"
	default:
		return fmt.Sprintf("Created user %q", a.Username)
	}
}

func (a GroupActivity) Detail() string {
	switch a.Action {
	case ActivityGroupClose:
		return "Closed the group"
	case ActivityGroupReopen:
		return "Reopened the group"
	default:
		return "Updated group settings"
	}
}

func (a SessionActivity) Detail() string {
	if a.Action == ActivityLogout {
		return "Signed out"
	}
	return "Signed in"
}

// payloadFor returns an empty payload value for kind, or false for kinds
// outside the closed set.
func payloadFor(kind ActivityKind) (ActivityPayload, bool) {
	switch kind {
	case ActivityDataEntry:
		return &DataEntryActivity{}, true
	case ActivityYearAdd, ActivityYearRecalculate, ActivityYearImport:
		return &YearActivity{Action: kind}, true
	case ActivityMemberAdd, ActivityMemberEdit, ActivityMemberRemove:
		return &MemberActivity{Action: kind}, true
	case ActivityUserCreate, ActivityUserUpdate, ActivityUserDeactivate, ActivityUserReactivate, ActivityPasswordChange:
		return &UserActivity{Action: kind}, true
	case ActivityGroupUpdate, ActivityGroupClose, ActivityGroupReopen:
		return &GroupActivity{Action: kind}, true
	case ActivityLogin, ActivityLogout:
		return &SessionActivity{Action: kind}, true
	}
	return nil, false
}

// Valid reports whether k belongs to the closed set.
func (k ActivityKind) Valid() bool {
	_, ok := payloadFor(k)
	return ok
}

// Activity is one append-only audit record.
type Activity struct {
	ID        string
	User      string
	Detail    string
	Timestamp time.Time
	Payload   ActivityPayload
}

// NewActivity builds a record for payload attributed to user.
func NewActivity(user string, payload ActivityPayload) Activity {
	return Activity{User: user, Detail: payload.Detail(), Payload: payload}
}

func (a Activity) Kind() ActivityKind {
	if a.Payload == nil {
		return ""
	}
	return a.Payload.Kind()
}

// Validate rejects records whose payload does not match a known kind.
func (a Activity) Validate() error {
	if a.Payload == nil {
		return Invalid("Activity payload is required")
	}
	if !payloadMatches(a.Payload) {
		return Invalid("Unknown activity type %q", a.Payload.Kind())
	}
	return nil
}

func payloadMatches(p ActivityPayload) bool {
	want, ok := payloadFor(p.Kind())
	if !ok {
		return false
	}
	switch want.(type) {
	case *DataEntryActivity:
		_, ok = p.(DataEntryActivity)
	case *YearActivity:
		_, ok = p.(YearActivity)
	case *MemberActivity:
		_, ok = p.(MemberActivity)
	case *UserActivity:
		_, ok = p.(UserActivity)
	case *GroupActivity:
		_, ok = p.(GroupActivity)
	case *SessionActivity:
		_, ok = p.(SessionActivity)
	}
	return ok
}

// Sanitize bounds the free-text fields and stamps the record with now.
func (a Activity) Sanitize(now time.Time) Activity {
	a.User = CleanText(a.User, SystemUser, activityUserMax)
	detail := a.Detail
	if detail == "" && a.Payload != nil {
		detail = a.Payload.Detail()
	}
	a.Detail = CleanText(detail, "", activityDetailMax)
	a.Timestamp = now.UTC()
	if p, ok := a.Payload.(DataEntryActivity); ok && len(p.ChangedMembers) > MaxChangedMembers {
		p.ChangedMembers = p.ChangedMembers[:MaxChangedMembers]
		a.Payload = p
	}
	return a
}

// MarshalJSON flattens the payload next to the common fields, matching the
// stored activityLog document shape.
func (a Activity) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if a.Payload != nil {
		raw, err := json.Marshal(a.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	kind := string(a.Kind())
	if r := []rune(kind); len(r) > activityTypeMax {
		kind = string(r[:activityTypeMax])
	}
	if kind == "" {
		kind = "unknown"
	}
	if a.ID != "" {
		fields["id"] = a.ID
	}
	fields["type"] = kind
	fields["user"] = a.User
	fields["detail"] = a.Detail
	fields["timestamp"] = a.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(fields)
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var head struct {
		ID        string    `json:"id"`
		Type      string    `json:"type"`
		User      string    `json:"user"`
		Detail    string    `json:"detail"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	kind := ActivityKind(head.Type)
	payload, ok := payloadFor(kind)
	if !ok {
		return fmt.Errorf("unknown activity type %q", head.Type)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	*a = Activity{ID: head.ID, User: head.User, Detail: head.Detail, Timestamp: head.Timestamp}
	switch p := payload.(type) {
	case *DataEntryActivity:
		a.Payload = *p
	case *YearActivity:
		a.Payload = *p
	case *MemberActivity:
		a.Payload = *p
	case *UserActivity:
		a.Payload = *p
	case *GroupActivity:
		a.Payload = *p
	case *SessionActivity:
		a.Payload = *p
	}
	return nil
}
