package services

import (
	"context"

	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/store"
)

// AuditLog appends activity records. Recording never fails the caller's
// operation; problems are logged.
type AuditLog struct {
	repo   *store.Repository
	events Publisher
	logger *log.Logger
}

func NewAuditLog(repo *store.Repository, events Publisher, logger *log.Logger) *AuditLog {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditLog{repo: repo, events: events, logger: logger.WithComponent(log.ComponentAudit)}
}

// Record appends payload attributed to actor.
func (a *AuditLog) Record(ctx context.Context, actor core.Actor, payload core.ActivityPayload) {
	a.RecordActivity(ctx, core.NewActivity(actor.Name(), payload))
}

// RecordActivity appends a prepared record, e.g. one with a custom detail.
func (a *AuditLog) RecordActivity(ctx context.Context, act core.Activity) {
	ctx = context.WithoutCancel(ctx)
	saved, err := a.repo.AppendActivity(ctx, act)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to record activity",
			log.FieldActivity, act.Kind(),
			log.FieldUser, act.User,
			log.FieldError, err)
		return
	}
	if a.events == nil {
		return
	}
	if err := a.events.PublishActivity(ctx, a.repo.GroupID(), saved); err != nil {
		a.logger.WarnContext(ctx, "Failed to publish activity",
			log.FieldActivity, saved.Kind(), log.FieldError, err)
	}
}

// Recent returns up to count records, newest first (count 0 means 20).
func (a *AuditLog) Recent(ctx context.Context, count int) ([]core.Activity, error) {
	return a.repo.RecentActivity(ctx, count)
}

// Watch streams the newest count records after every append.
func (a *AuditLog) Watch(ctx context.Context, count int, fn func([]core.Activity, error)) (store.Cancel, error) {
	return a.repo.WatchActivity(ctx, count, fn)
}
