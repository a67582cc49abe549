package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"shgbook/internal/cli"
	"shgbook/internal/config"
	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/seed"
	"shgbook/internal/services"
	"shgbook/internal/worker"
)

var (
	seedFile   = flag.String("file", "", "YAML seed file (default: bundled sample)")
	overwrite  = flag.Bool("overwrite", false, "Write the seed even when the group already has information")
	admin      = flag.String("admin", "", "Bootstrap an administrator profile, as uid:username")
	importYear = flag.Int("import-year", 0, "Pull this year from the configured spreadsheet after seeding")
	skipSeed   = flag.Bool("skip-seed", false, "Only run -admin and -import-year")
)

// systemActor runs seeding steps that have no signed-in user.
var systemActor = core.Actor{Username: core.SystemUser, Role: core.RoleAdmin, Status: core.StatusActive}

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `shgbook-seed - initialise a group ledger

Usage:
  shgbook-seed [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Seed an empty sqlite group with the sample data and an admin
  DATA_BACKEND=sqlite shgbook-seed -admin u-123:lakshmi

  # Replace the group with a prepared file
  shgbook-seed -file group.yaml -overwrite
`)
	}
	flag.Parse()

	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentSeed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Seed failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	// The backend applies SEED_FILE on open; the flags below take over here.
	cfg.SeedFile = ""
	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend close failed", log.FieldError, err)
		}
	}()

	if !*skipSeed {
		s := seed.Sample()
		if *seedFile != "" {
			loaded, err := seed.LoadFile(*seedFile)
			if err != nil {
				return err
			}
			s = loaded
		}
		wrote, err := seed.Write(ctx, res.Repo, s, *overwrite)
		if err != nil {
			return err
		}
		if wrote {
			logger.Info("Seed written", "members", len(s.Members), "years", len(s.Years))
		} else {
			logger.Info("Group already initialised, seed skipped (use -overwrite to replace)")
		}
	}

	svc := cli.NewServices(logger, cfg, res, nil)
	actor := systemActor
	if *admin != "" {
		u, err := bootstrapAdmin(ctx, svc, *admin)
		if err != nil {
			return err
		}
		actor = core.ActorFor(u)
		logger.Info("Administrator ready", log.FieldUser, u.Username, "uid", u.UID)
	}

	if *importYear != 0 {
		sheetsClient, err := cli.OpenSheets(ctx, logger, cfg)
		if err != nil {
			return err
		}
		if sheetsClient == nil {
			return errors.New("-import-year needs GOOGLE_SPREADSHEET_ID")
		}
		y, err := worker.NewSheetImporter(sheetsClient, svc.Ledger, logger).Import(ctx, actor, *importYear)
		if err != nil {
			return err
		}
		logger.Info("Year imported", log.FieldYear, y.Year, "months", len(y.Months))
	}
	return nil
}

func bootstrapAdmin(ctx context.Context, svc *services.Services, pair string) (core.User, error) {
	uid, username, ok := strings.Cut(pair, ":")
	if !ok || strings.TrimSpace(uid) == "" || strings.TrimSpace(username) == "" {
		return core.User{}, fmt.Errorf("invalid -admin %q: want uid:username", pair)
	}
	if u, err := svc.Users.User(ctx, systemActor, uid); err == nil {
		return u, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, err
	}
	role := string(core.RoleAdmin)
	return svc.Users.CreateUser(ctx, systemActor, uid, core.UserPatch{
		Username: &username,
		FullName: &username,
		Role:     &role,
	})
}
