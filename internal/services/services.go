// Package services holds the group's use cases. Each mutating operation
// checks authorization and input before touching the store, persists, then
// records an audit entry and announces the change.
package services

import (
	"context"
	"errors"
	"time"

	"shgbook/internal/core"
	"shgbook/internal/ledger"
	"shgbook/internal/log"
	"shgbook/internal/store"
)

// Publisher announces ledger writes and audit records. A nil Publisher
// disables announcements.
type Publisher interface {
	PublishLedgerSaved(ctx context.Context, groupID string, year int, reason string) error
	PublishActivity(ctx context.Context, groupID string, a core.Activity) error
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Repo                *store.Repository
	Events              Publisher
	Logger              *log.Logger
	DefaultInterestRate float64
	MaxAmount           int64
	Now                 func() time.Time
}

// Services bundles the group's use cases.
type Services struct {
	Ledger  *LedgerService
	Members *MemberService
	Group   *GroupService
	Users   *UserService
	Audit   *AuditLog
}

func New(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxAmount == 0 {
		deps.MaxAmount = core.DefaultMaxAmount
	}
	audit := NewAuditLog(deps.Repo, deps.Events, deps.Logger)
	return &Services{
		Ledger:  &LedgerService{deps: deps, audit: audit, logger: deps.Logger.WithComponent(log.ComponentLedger)},
		Members: &MemberService{deps: deps, audit: audit, logger: deps.Logger.WithComponent(log.ComponentMembers)},
		Group:   &GroupService{deps: deps, audit: audit},
		Users:   &UserService{deps: deps, audit: audit},
		Audit:   audit,
	}
}

func requireAdmin(actor core.Actor, action string) error {
	if !actor.IsAdmin() {
		return core.Forbidden("only admins may " + action)
	}
	if !actor.IsActive() {
		return core.Forbidden("your account is disabled")
	}
	return nil
}

// groupInfo loads the group, treating a missing record as an open group
// using the default interest rate.
func groupInfo(ctx context.Context, deps Deps) (core.GroupInfo, error) {
	g, err := deps.Repo.GroupInfo(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return core.GroupInfo{InterestRate: deps.DefaultInterestRate}, nil
	}
	return g, err
}

// requireOpen loads the group and rejects the operation when it is closed.
func requireOpen(ctx context.Context, deps Deps) (core.GroupInfo, error) {
	g, err := groupInfo(ctx, deps)
	if err != nil {
		return core.GroupInfo{}, err
	}
	if g.IsClosed {
		return core.GroupInfo{}, core.Forbidden("group is closed")
	}
	return g, nil
}

func calculator(g core.GroupInfo) ledger.Calculator {
	return ledger.NewCalculator(g.InterestRate)
}

func memberIDs(members []core.Member) []int {
	ids := make([]int, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

func announce(ctx context.Context, deps Deps, logger *log.Logger, year int, reason string) {
	if deps.Events == nil {
		return
	}
	if err := deps.Events.PublishLedgerSaved(context.WithoutCancel(ctx), deps.Repo.GroupID(), year, reason); err != nil {
		logger.WarnContext(ctx, "Failed to publish ledger saved message",
			log.FieldYear, year, log.FieldError, err)
	}
}
