package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/backend"
	"shgbook/internal/config"
	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/store"
	"shgbook/internal/store/memory"
)

func TestNewVerifierStatic(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{AuthMode: "static", AuthStaticTokens: "tok-1:u-1, bad, tok-2:u-2"}

	v, err := NewVerifier(ctx, cfg, &backend.Result{})
	require.NoError(t, err)
	uid, err := v.Verify(ctx, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "u-2", uid)

	_, err = NewVerifier(ctx, &config.Config{AuthMode: "static"}, &backend.Result{})
	assert.Error(t, err, "an empty token list locks everyone out")

	_, err = NewVerifier(ctx, &config.Config{AuthMode: "ldap"}, &backend.Result{})
	assert.Error(t, err)
}

func TestOptionalIntegrationsAreDisabledWithoutConfig(t *testing.T) {
	logger := log.Discard()

	events, closeEvents := OpenPublisher(logger, &config.Config{})
	assert.Nil(t, events)
	closeEvents()

	sheets, err := OpenSheets(context.Background(), logger, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, sheets)
}

func TestNewServicesUsesConfiguredRules(t *testing.T) {
	repo := store.NewRepository(memory.New(), "g1", core.DefaultMaxAmount)
	svc := NewServices(log.Discard(), &config.Config{DefaultInterestRate: 0.03, MaxAmount: 5000}, &backend.Result{Repo: repo}, nil)

	admin := core.Actor{UID: "a", Username: "admin", Role: core.RoleAdmin, Status: core.StatusActive}
	_, err := svc.Ledger.AddYear(context.Background(), admin, 2024)
	require.NoError(t, err)

	_, err = svc.Ledger.UpdateMonth(context.Background(), admin, 2024, 0, []core.RawEntry{{MemberID: 1, Saving: 6000}})
	assert.ErrorIs(t, err, core.ErrValidation)
}
