package seed

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"shgbook/internal/core"
	"shgbook/internal/store"
)

// Write stores s through repo. Groups that already have information are left
// alone unless overwrite is set. It reports whether anything was written.
func Write(ctx context.Context, repo *store.Repository, s Seed, overwrite bool) (bool, error) {
	if !overwrite {
		_, err := repo.GroupInfo(ctx)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return false, err
		}
	}

	if _, err := repo.SaveGroupInfo(ctx, s.Group, core.SystemUser); err != nil {
		return false, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, m := range s.Members {
		g.Go(func() error {
			_, err := repo.SaveMember(gctx, m, core.SystemUser)
			return err
		})
	}
	for _, y := range s.Years {
		g.Go(func() error {
			_, err := repo.SaveYear(gctx, y, core.SystemUser)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return true, nil
}
