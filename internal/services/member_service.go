package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"shgbook/internal/core"
	"shgbook/internal/ledger"
	"shgbook/internal/log"
	"shgbook/internal/store"
)

const yearWriteConcurrency = 4

// MemberService manages enrolment. Adding or removing a member rewrites
// every stored year.
type MemberService struct {
	deps   Deps
	audit  *AuditLog
	logger *log.Logger
}

func (s *MemberService) Members(ctx context.Context) ([]core.Member, error) {
	return s.deps.Repo.Members(ctx)
}

func (s *MemberService) Member(ctx context.Context, id int) (core.Member, error) {
	if err := core.ValidateMemberID(id); err != nil {
		return core.Member{}, err
	}
	return s.deps.Repo.Member(ctx, id)
}

// Watch delivers the member list, ordered by id, after every change.
func (s *MemberService) Watch(ctx context.Context, fn func([]core.Member, error)) (store.Cancel, error) {
	return s.deps.Repo.WatchMembers(ctx, fn)
}

// AddMember enrols a member under the next free id and appends a zero entry
// for them to every month of every year. nameTA defaults to name.
func (s *MemberService) AddMember(ctx context.Context, actor core.Actor, name, nameTA string) (core.Member, error) {
	if err := requireAdmin(actor, "add members"); err != nil {
		return core.Member{}, err
	}
	m, err := memberNames(name, nameTA)
	if err != nil {
		return core.Member{}, err
	}
	if _, err := requireOpen(ctx, s.deps); err != nil {
		return core.Member{}, err
	}
	members, err := s.deps.Repo.Members(ctx)
	if err != nil {
		return core.Member{}, err
	}
	for _, existing := range members {
		if existing.ID >= m.ID {
			m.ID = existing.ID + 1
		}
	}
	if m.ID == 0 {
		m.ID = 1
	}

	saved, err := s.deps.Repo.SaveMember(ctx, m, actor.Name())
	if err != nil {
		return core.Member{}, err
	}
	if err := s.rewriteYears(ctx, actor, "member_add", func(y core.YearLedger) core.YearLedger {
		return ledger.AddMember(y, saved.ID)
	}); err != nil {
		return core.Member{}, err
	}
	s.syncMemberCount(ctx, actor, len(members)+1)
	s.audit.Record(ctx, actor, core.MemberActivity{Action: core.ActivityMemberAdd, MemberID: saved.ID, Name: saved.Name})
	return saved, nil
}

// EditMember changes names only; ledger entries are untouched.
func (s *MemberService) EditMember(ctx context.Context, actor core.Actor, id int, name, nameTA string) (core.Member, error) {
	if err := requireAdmin(actor, "edit members"); err != nil {
		return core.Member{}, err
	}
	if err := core.ValidateMemberID(id); err != nil {
		return core.Member{}, err
	}
	names, err := memberNames(name, nameTA)
	if err != nil {
		return core.Member{}, err
	}
	if _, err := requireOpen(ctx, s.deps); err != nil {
		return core.Member{}, err
	}
	m, err := s.deps.Repo.Member(ctx, id)
	if err != nil {
		return core.Member{}, err
	}
	m.Name, m.NameTA = names.Name, names.NameTA
	saved, err := s.deps.Repo.SaveMember(ctx, m, actor.Name())
	if err != nil {
		return core.Member{}, err
	}
	s.audit.Record(ctx, actor, core.MemberActivity{Action: core.ActivityMemberEdit, MemberID: id, Name: saved.Name})
	return saved, nil
}

// RemoveMember deletes the member and their entries from every year. Other
// members keep their ids.
func (s *MemberService) RemoveMember(ctx context.Context, actor core.Actor, id int) error {
	if err := requireAdmin(actor, "remove members"); err != nil {
		return err
	}
	if err := core.ValidateMemberID(id); err != nil {
		return err
	}
	if _, err := requireOpen(ctx, s.deps); err != nil {
		return err
	}
	m, err := s.deps.Repo.Member(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Repo.DeleteMember(ctx, id); err != nil {
		return err
	}
	if err := s.rewriteYears(ctx, actor, "member_remove", func(y core.YearLedger) core.YearLedger {
		return ledger.RemoveMember(y, id)
	}); err != nil {
		return err
	}
	if members, err := s.deps.Repo.Members(ctx); err == nil {
		s.syncMemberCount(ctx, actor, len(members))
	}
	s.audit.Record(ctx, actor, core.MemberActivity{Action: core.ActivityMemberRemove, MemberID: id, Name: m.Name})
	return nil
}

// rewriteYears applies fn to every stored year and saves the results
// concurrently.
func (s *MemberService) rewriteYears(ctx context.Context, actor core.Actor, reason string, fn func(core.YearLedger) core.YearLedger) error {
	years, err := s.deps.Repo.Years(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(yearWriteConcurrency)
	for _, y := range years {
		g.Go(func() error {
			if _, err := s.deps.Repo.SaveYear(gctx, fn(ledger.Normalize(y)), actor.Name()); err != nil {
				return err
			}
			announce(ctx, s.deps, s.logger, y.Year, reason)
			return nil
		})
	}
	return g.Wait()
}

// syncMemberCount keeps the group's totalMembers in step. Failures are logged.
func (s *MemberService) syncMemberCount(ctx context.Context, actor core.Actor, n int) {
	if _, err := s.deps.Repo.GroupInfo(ctx); errors.Is(err, core.ErrNotFound) {
		return
	}
	if _, err := s.deps.Repo.UpdateGroupInfo(ctx, core.GroupPatch{TotalMembers: &n}, actor.Name()); err != nil {
		s.logger.WarnContext(ctx, "Failed to update member count", log.FieldError, err)
	}
}

func memberNames(name, nameTA string) (core.Member, error) {
	n, err := core.ValidateName("Member name", name, core.NameRule{Max: core.PersonNameMax})
	if err != nil {
		return core.Member{}, err
	}
	ta, err := core.ValidateName("Member name (Tamil)", nameTA, core.NameRule{Optional: true, Max: core.PersonNameMax})
	if err != nil {
		return core.Member{}, err
	}
	if ta == "" {
		ta = n
	}
	return core.Member{Name: n, NameTA: ta}, nil
}
