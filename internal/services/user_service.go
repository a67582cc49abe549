package services

import (
	"context"
	"fmt"

	"shgbook/internal/core"
)

// UserService manages sign-in profiles. Credentials live with the identity
// provider; only profile, role and status are stored here.
type UserService struct {
	deps  Deps
	audit *AuditLog
}

func (s *UserService) Users(ctx context.Context, actor core.Actor) ([]core.User, error) {
	if err := requireAdmin(actor, "list users"); err != nil {
		return nil, err
	}
	return s.deps.Repo.Users(ctx)
}

// User returns a profile. Members may read only their own.
func (s *UserService) User(ctx context.Context, actor core.Actor, uid string) (core.User, error) {
	if actor.UID != uid {
		if err := requireAdmin(actor, "view other users"); err != nil {
			return core.User{}, err
		}
	}
	return s.deps.Repo.User(ctx, uid)
}

// CreateUser stores a profile for an identity uid. Role defaults to member
// and status to active.
func (s *UserService) CreateUser(ctx context.Context, actor core.Actor, uid string, patch core.UserPatch) (core.User, error) {
	if err := requireAdmin(actor, "create users"); err != nil {
		return core.User{}, err
	}
	if uid == "" {
		return core.User{}, core.Invalid("User id is required")
	}
	if err := core.ValidateUserPatch(&patch, false); err != nil {
		return core.User{}, err
	}
	users, err := s.deps.Repo.Users(ctx)
	if err != nil {
		return core.User{}, err
	}
	for _, u := range users {
		if u.UID == uid {
			return core.User{}, core.Invalid("User %s already exists", uid)
		}
		if u.Username == *patch.Username {
			return core.User{}, core.Invalid("Username %q is already taken", u.Username)
		}
	}
	saved, err := s.deps.Repo.SaveUser(ctx, patch.Apply(core.User{UID: uid}), actor.Name())
	if err != nil {
		return core.User{}, err
	}
	s.audit.Record(ctx, actor, core.UserActivity{Action: core.ActivityUserCreate, UID: uid, Username: saved.Username})
	return saved, nil
}

// UpdateUser applies a partial profile patch. Users may edit their own
// names and email; role and status changes need an admin, who cannot demote
// or disable themselves.
func (s *UserService) UpdateUser(ctx context.Context, actor core.Actor, uid string, patch core.UserPatch) (core.User, error) {
	self := actor.UID == uid
	privileged := patch.Role != nil || patch.Status != nil || patch.Username != nil
	if !self || privileged {
		if err := requireAdmin(actor, "change user roles or status"); err != nil {
			return core.User{}, err
		}
	}
	if self && !actor.IsActive() {
		return core.User{}, core.Forbidden("your account is disabled")
	}
	if err := core.ValidateUserPatch(&patch, true); err != nil {
		return core.User{}, err
	}
	if self && patch.Role != nil && core.Role(*patch.Role) != core.RoleAdmin {
		return core.User{}, core.Forbidden("you cannot remove your own admin role")
	}
	if self && patch.Status != nil && core.Status(*patch.Status) != core.StatusActive {
		return core.User{}, core.Forbidden("you cannot disable your own account")
	}
	current, err := s.deps.Repo.User(ctx, uid)
	if err != nil {
		return core.User{}, err
	}
	if patch.Username != nil && *patch.Username != current.Username {
		users, err := s.deps.Repo.Users(ctx)
		if err != nil {
			return core.User{}, err
		}
		for _, u := range users {
			if u.UID != uid && u.Username == *patch.Username {
				return core.User{}, core.Invalid("Username %q is already taken", u.Username)
			}
		}
	}
	saved, err := s.deps.Repo.SaveUser(ctx, patch.Apply(current), actor.Name())
	if err != nil {
		return core.User{}, err
	}
	s.audit.Record(ctx, actor, core.UserActivity{Action: core.ActivityUserUpdate, UID: uid, Username: saved.Username})
	return saved, nil
}

func (s *UserService) DeactivateUser(ctx context.Context, actor core.Actor, uid string) (core.User, error) {
	return s.setStatus(ctx, actor, uid, core.StatusDisabled, core.ActivityUserDeactivate)
}

func (s *UserService) ReactivateUser(ctx context.Context, actor core.Actor, uid string) (core.User, error) {
	return s.setStatus(ctx, actor, uid, core.StatusActive, core.ActivityUserReactivate)
}

func (s *UserService) setStatus(ctx context.Context, actor core.Actor, uid string, status core.Status, kind core.ActivityKind) (core.User, error) {
	if err := requireAdmin(actor, "change user status"); err != nil {
		return core.User{}, err
	}
	if actor.UID == uid {
		return core.User{}, core.Forbidden("you cannot change your own status")
	}
	u, err := s.deps.Repo.User(ctx, uid)
	if err != nil {
		return core.User{}, err
	}
	if u.Status == status {
		return core.User{}, core.Invalid("User %q is already %s", u.Username, status)
	}
	u.Status = status
	saved, err := s.deps.Repo.SaveUser(ctx, u, actor.Name())
	if err != nil {
		return core.User{}, err
	}
	s.audit.Record(ctx, actor, core.UserActivity{Action: kind, UID: uid, Username: u.Username})
	return saved, nil
}

// DeleteUser removes a profile. The audit record is a deactivation with a
// deletion detail.
func (s *UserService) DeleteUser(ctx context.Context, actor core.Actor, uid string) error {
	if err := requireAdmin(actor, "delete users"); err != nil {
		return err
	}
	if actor.UID == uid {
		return core.Forbidden("you cannot delete your own account")
	}
	u, err := s.deps.Repo.User(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.deps.Repo.DeleteUser(ctx, uid); err != nil {
		return err
	}
	act := core.NewActivity(actor.Name(), core.UserActivity{Action: core.ActivityUserDeactivate, UID: uid, Username: u.Username})
	act.Detail = fmt.Sprintf("Deleted user %q", u.Username)
	s.audit.RecordActivity(ctx, act)
	return nil
}

// RecordSession logs a sign-in or sign-out.
func (s *UserService) RecordSession(ctx context.Context, actor core.Actor, kind core.ActivityKind) error {
	if kind != core.ActivityLogin && kind != core.ActivityLogout {
		return core.Invalid("Unknown session event %q", kind)
	}
	s.audit.Record(ctx, actor, core.SessionActivity{Action: kind})
	return nil
}
