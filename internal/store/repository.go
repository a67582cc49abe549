package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"shgbook/internal/core"
)

const (
	DefaultActivityCount = 20
	MaxActivityCount     = 100
)

// Repository maps the group's typed records onto document paths:
//
//	groups/{group}
//	groups/{group}/members/{id}
//	groups/{group}/years/{year}
//	groups/{group}/users/{uid}
//	groups/{group}/activityLog/{id}
type Repository struct {
	docs      DocumentStore
	group     string
	maxAmount int64
	now       func() time.Time
}

func NewRepository(docs DocumentStore, groupID string, maxAmount int64) *Repository {
	if groupID == "" {
		groupID = "default"
	}
	return &Repository{docs: docs, group: groupID, maxAmount: maxAmount, now: time.Now}
}

// Store exposes the underlying document store.
func (r *Repository) Store() DocumentStore { return r.docs }

func (r *Repository) GroupID() string { return r.group }

func (r *Repository) groupPath() string            { return "groups/" + r.group }
func (r *Repository) membersPath() string          { return r.groupPath() + "/members" }
func (r *Repository) memberPath(id int) string     { return r.membersPath() + "/" + strconv.Itoa(id) }
func (r *Repository) yearsPath() string            { return r.groupPath() + "/years" }
func (r *Repository) yearPath(year int) string     { return r.yearsPath() + "/" + strconv.Itoa(year) }
func (r *Repository) usersPath() string            { return r.groupPath() + "/users" }
func (r *Repository) userPath(uid string) string   { return r.usersPath() + "/" + uid }
func (r *Repository) activityPath() string         { return r.groupPath() + "/activityLog" }
func (r *Repository) activityDoc(id string) string { return r.activityPath() + "/" + id }

// Ready checks that the store answers reads.
func (r *Repository) Ready(ctx context.Context) error {
	_, err := r.docs.Get(ctx, r.groupPath())
	if err != nil && !errors.Is(err, ErrNoDocument) {
		return core.Persistence("reach the data store", err)
	}
	return nil
}

func (r *Repository) GroupInfo(ctx context.Context) (core.GroupInfo, error) {
	var g core.GroupInfo
	found, err := r.load(ctx, r.groupPath(), &g, "load group information")
	if err != nil {
		return core.GroupInfo{}, err
	}
	if !found {
		return core.GroupInfo{}, core.NotFound("Group information not found")
	}
	return g, nil
}

// SaveGroupInfo writes g whole, stamping it for user.
func (r *Repository) SaveGroupInfo(ctx context.Context, g core.GroupInfo, user string) (core.GroupInfo, error) {
	if err := core.ValidateInterestRate(g.InterestRate); err != nil {
		return core.GroupInfo{}, err
	}
	if err := core.CheckAmount("Monthly saving", g.MonthlySaving, r.maxAmount); err != nil {
		return core.GroupInfo{}, err
	}
	if g.TotalMembers < 0 {
		return core.GroupInfo{}, core.Invalid("Total members cannot be negative")
	}
	g.Stamp = g.Stamp.Touch(user, r.now())
	return g, r.save(ctx, r.groupPath(), g, "save group information")
}

// UpdateGroupInfo applies a validated patch. A missing group record is
// created from the patch.
func (r *Repository) UpdateGroupInfo(ctx context.Context, patch core.GroupPatch, user string) (core.GroupInfo, error) {
	if err := core.ValidateGroupPatch(&patch, r.maxAmount); err != nil {
		return core.GroupInfo{}, err
	}
	current, err := r.GroupInfo(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.GroupInfo{}, err
	}
	return r.SaveGroupInfo(ctx, patch.Apply(current), user)
}

// Members returns every member ordered by id.
func (r *Repository) Members(ctx context.Context) ([]core.Member, error) {
	var members []core.Member
	if err := r.list(ctx, r.membersPath(), "load members", func(data json.RawMessage) error {
		var m core.Member
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		members = append(members, m)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *Repository) Member(ctx context.Context, id int) (core.Member, error) {
	var m core.Member
	found, err := r.load(ctx, r.memberPath(id), &m, "load member")
	if err != nil {
		return core.Member{}, err
	}
	if !found {
		return core.Member{}, core.NotFound("Member #%d not found", id)
	}
	return m, nil
}

func (r *Repository) SaveMember(ctx context.Context, m core.Member, user string) (core.Member, error) {
	if err := core.ValidateMemberID(m.ID); err != nil {
		return core.Member{}, err
	}
	m.Stamp = m.Stamp.Touch(user, r.now())
	return m, r.save(ctx, r.memberPath(m.ID), m, "save member")
}

func (r *Repository) DeleteMember(ctx context.Context, id int) error {
	return core.Persistence("delete member", r.docs.Delete(ctx, r.memberPath(id)))
}

// Years returns every stored year ledger ordered by year.
func (r *Repository) Years(ctx context.Context) ([]core.YearLedger, error) {
	var years []core.YearLedger
	if err := r.list(ctx, r.yearsPath(), "load years", func(data json.RawMessage) error {
		var y core.YearLedger
		if err := json.Unmarshal(data, &y); err != nil {
			return err
		}
		years = append(years, y)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years, nil
}

func (r *Repository) Year(ctx context.Context, year int) (core.YearLedger, error) {
	var y core.YearLedger
	found, err := r.load(ctx, r.yearPath(year), &y, "load year")
	if err != nil {
		return core.YearLedger{}, err
	}
	if !found {
		return core.YearLedger{}, core.NotFound("Year %d not found", year)
	}
	return y, nil
}

// HasYear reports whether a ledger exists for year.
func (r *Repository) HasYear(ctx context.Context, year int) (bool, error) {
	_, err := r.docs.Get(ctx, r.yearPath(year))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoDocument):
		return false, nil
	default:
		return false, core.Persistence("load year", err)
	}
}

// SaveYear checks the record shape and writes it, stamping it for user.
func (r *Repository) SaveYear(ctx context.Context, y core.YearLedger, user string) (core.YearLedger, error) {
	if err := CheckYearRecord(y, r.maxAmount); err != nil {
		return core.YearLedger{}, err
	}
	y.Stamp = y.Stamp.Touch(user, r.now())
	return y, r.save(ctx, r.yearPath(y.Year), y, fmt.Sprintf("save year %d", y.Year))
}

// Users returns every user profile ordered by username.
func (r *Repository) Users(ctx context.Context) ([]core.User, error) {
	var users []core.User
	if err := r.list(ctx, r.usersPath(), "load users", func(data json.RawMessage) error {
		var u core.User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *Repository) User(ctx context.Context, uid string) (core.User, error) {
	if uid == "" {
		return core.User{}, core.Invalid("User id is required")
	}
	var u core.User
	found, err := r.load(ctx, r.userPath(uid), &u, "load user")
	if err != nil {
		return core.User{}, err
	}
	if !found {
		return core.User{}, core.NotFound("User %s not found", uid)
	}
	return u, nil
}

func (r *Repository) SaveUser(ctx context.Context, u core.User, user string) (core.User, error) {
	if u.UID == "" {
		return core.User{}, core.Invalid("User id is required")
	}
	u.Stamp = u.Stamp.Touch(user, r.now())
	return u, r.save(ctx, r.userPath(u.UID), u, "save user")
}

func (r *Repository) DeleteUser(ctx context.Context, uid string) error {
	if uid == "" {
		return core.Invalid("User id is required")
	}
	return core.Persistence("delete user", r.docs.Delete(ctx, r.userPath(uid)))
}

// AppendActivity sanitizes, timestamps and stores a new audit record.
func (r *Repository) AppendActivity(ctx context.Context, a core.Activity) (core.Activity, error) {
	if err := a.Validate(); err != nil {
		return core.Activity{}, err
	}
	a = a.Sanitize(r.now())
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return a, r.save(ctx, r.activityDoc(a.ID), a, "record activity")
}

// RecentActivity returns up to count records, newest first. Zero selects
// DefaultActivityCount.
func (r *Repository) RecentActivity(ctx context.Context, count int) ([]core.Activity, error) {
	count, err := ActivityCount(count)
	if err != nil {
		return nil, err
	}
	docs, err := r.docs.List(ctx, r.activityPath())
	if err != nil {
		return nil, core.Persistence("load activity log", err)
	}
	return decodeActivities(docs, count), nil
}

// ActivityCount normalises a requested page size.
func ActivityCount(count int) (int, error) {
	if count == 0 {
		return DefaultActivityCount, nil
	}
	if count < 1 || count > MaxActivityCount {
		return 0, core.Invalid("Activity count must be between 1 and %d", MaxActivityCount)
	}
	return count, nil
}

// WatchYear follows one year ledger. fn gets found=false while it is absent.
func (r *Repository) WatchYear(ctx context.Context, year int, fn func(y core.YearLedger, found bool, err error)) (Cancel, error) {
	return r.docs.Subscribe(ctx, r.yearPath(year), func(s Snapshot) {
		if s.Err != nil {
			fn(core.YearLedger{}, false, core.Persistence("watch year", s.Err))
			return
		}
		if len(s.Docs) == 0 {
			fn(core.YearLedger{}, false, nil)
			return
		}
		var y core.YearLedger
		if err := json.Unmarshal(s.Docs[0].Data, &y); err != nil {
			fn(core.YearLedger{}, false, core.Persistence("decode year", err))
			return
		}
		fn(y, true, nil)
	})
}

func (r *Repository) WatchMembers(ctx context.Context, fn func([]core.Member, error)) (Cancel, error) {
	return r.docs.Subscribe(ctx, r.membersPath(), func(s Snapshot) {
		if s.Err != nil {
			fn(nil, core.Persistence("watch members", s.Err))
			return
		}
		members := make([]core.Member, 0, len(s.Docs))
		for _, d := range s.Docs {
			var m core.Member
			if err := json.Unmarshal(d.Data, &m); err != nil {
				fn(nil, core.Persistence("decode member", err))
				return
			}
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		fn(members, nil)
	})
}

func (r *Repository) WatchActivity(ctx context.Context, count int, fn func([]core.Activity, error)) (Cancel, error) {
	count, err := ActivityCount(count)
	if err != nil {
		return nil, err
	}
	return r.docs.Subscribe(ctx, r.activityPath(), func(s Snapshot) {
		if s.Err != nil {
			fn(nil, core.Persistence("watch activity log", s.Err))
			return
		}
		fn(decodeActivities(s.Docs, count), nil)
	})
}

// decodeActivities skips records it cannot decode, such as types written by
// newer releases.
func decodeActivities(docs []Document, count int) []core.Activity {
	out := make([]core.Activity, 0, len(docs))
	for _, d := range docs {
		var a core.Activity
		if err := json.Unmarshal(d.Data, &a); err != nil {
			continue
		}
		if a.ID == "" {
			a.ID = ID(d.Path)
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > count {
		out = out[:count]
	}
	return out
}

func (r *Repository) load(ctx context.Context, path string, v any, op string) (bool, error) {
	doc, err := r.docs.Get(ctx, path)
	if errors.Is(err, ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, core.Persistence(op, err)
	}
	if err := json.Unmarshal(doc.Data, v); err != nil {
		return false, core.Persistence(op, fmt.Errorf("decode %s: %w", path, err))
	}
	return true, nil
}

func (r *Repository) list(ctx context.Context, collection, op string, each func(json.RawMessage) error) error {
	docs, err := r.docs.List(ctx, collection)
	if err != nil {
		return core.Persistence(op, err)
	}
	for _, d := range docs {
		if err := each(d.Data); err != nil {
			return core.Persistence(op, fmt.Errorf("decode %s: %w", d.Path, err))
		}
	}
	return nil
}

func (r *Repository) save(ctx context.Context, path string, v any, op string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Persistence(op, fmt.Errorf("encode %s: %w", path, err))
	}
	return core.Persistence(op, r.docs.Set(ctx, path, data))
}

// CheckYearRecord guards writes: the year must be in range with twelve
// ordered months, member ids positive, and every amount except balance and
// oldLoan non-negative and within max.
func CheckYearRecord(y core.YearLedger, max int64) error {
	if err := core.ValidateYear(y.Year); err != nil {
		return err
	}
	if len(y.Months) != core.MonthsPerYear {
		return core.Invalid("Year %d must have %d months, got %d", y.Year, core.MonthsPerYear, len(y.Months))
	}
	for i, m := range y.Months {
		if m.MonthIndex != i {
			return core.Invalid("Year %d month %d has index %d", y.Year, i, m.MonthIndex)
		}
		seen := make(map[int]bool, len(m.Members))
		for _, e := range m.Members {
			if err := core.ValidateMemberID(e.MemberID); err != nil {
				return err
			}
			if seen[e.MemberID] {
				return core.Invalid("Member #%d appears twice in %s %d", e.MemberID, m.Month, y.Year)
			}
			seen[e.MemberID] = true
			for _, f := range []struct {
				name string
				v    int64
			}{
				{"Monthly saving", e.Saving},
				{"New loan", e.LoanTaken},
				{"Repayment", e.LoanRepayment},
				{"Cumulative", e.Cumulative},
				{"Old interest", e.OldInterest},
				{"Interest", e.CurrentInterest},
			} {
				if err := core.CheckAmount(f.name, f.v, max); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
