package services

import (
	"context"

	"shgbook/internal/core"
)

// GroupService reads and edits the group record. Settings may change while
// the group is closed; closing and reopening have their own operations.
type GroupService struct {
	deps  Deps
	audit *AuditLog
}

func (s *GroupService) GroupInfo(ctx context.Context) (core.GroupInfo, error) {
	return s.deps.Repo.GroupInfo(ctx)
}

func (s *GroupService) UpdateGroupInfo(ctx context.Context, actor core.Actor, patch core.GroupPatch) (core.GroupInfo, error) {
	if err := requireAdmin(actor, "change group settings"); err != nil {
		return core.GroupInfo{}, err
	}
	if patch.IsClosed != nil {
		return core.GroupInfo{}, core.Invalid("Use close or reopen to change the group status")
	}
	g, err := s.deps.Repo.UpdateGroupInfo(ctx, patch, actor.Name())
	if err != nil {
		return core.GroupInfo{}, err
	}
	s.audit.Record(ctx, actor, core.GroupActivity{Action: core.ActivityGroupUpdate, Fields: patch.Fields()})
	return g, nil
}

// CloseGroup freezes ledger and member edits.
func (s *GroupService) CloseGroup(ctx context.Context, actor core.Actor) (core.GroupInfo, error) {
	return s.setClosed(ctx, actor, true)
}

func (s *GroupService) ReopenGroup(ctx context.Context, actor core.Actor) (core.GroupInfo, error) {
	return s.setClosed(ctx, actor, false)
}

func (s *GroupService) setClosed(ctx context.Context, actor core.Actor, closed bool) (core.GroupInfo, error) {
	action, kind := "close the group", core.ActivityGroupClose
	if !closed {
		action, kind = "reopen the group", core.ActivityGroupReopen
	}
	if err := requireAdmin(actor, action); err != nil {
		return core.GroupInfo{}, err
	}
	current, err := groupInfo(ctx, s.deps)
	if err != nil {
		return core.GroupInfo{}, err
	}
	if current.IsClosed == closed {
		if closed {
			return core.GroupInfo{}, core.Invalid("group is already closed")
		}
		return core.GroupInfo{}, core.Invalid("group is already open")
	}
	g, err := s.deps.Repo.UpdateGroupInfo(ctx, core.GroupPatch{IsClosed: &closed}, actor.Name())
	if err != nil {
		return core.GroupInfo{}, err
	}
	s.audit.Record(ctx, actor, core.GroupActivity{Action: kind})
	return g, nil
}
