package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/store"
	"shgbook/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.DocumentStore, string) {
		s := New()
		t.Cleanup(func() { s.Close() })
		return s, "suite/run"
	})
}

func TestMemoryStoreRejectsBadInput(t *testing.T) {
	s := New()
	ctx := context.Background()
	assert.Error(t, s.Set(ctx, "groups/g/members", json.RawMessage(`{}`)), "collection path")
	assert.Error(t, s.Set(ctx, "groups/g", json.RawMessage(`{not json`)), "invalid json")
	_, err := s.Get(ctx, "groups")
	assert.Error(t, err)
	_, err = s.Subscribe(ctx, "groups/g", nil)
	assert.Error(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	data := json.RawMessage(`{"a":1}`)
	require.NoError(t, s.Set(ctx, "groups/g", data))
	data[2] = 'b'

	doc, err := s.Get(ctx, "groups/g")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(doc.Data))
}

func TestMemoryStoreCloseCancelsSubscriptions(t *testing.T) {
	s := New()
	_, err := s.Subscribe(context.Background(), "groups/g", func(store.Snapshot) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreContextCancelEndsSubscription(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Subscribe(ctx, "groups/g/years", func(store.Snapshot) {})
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
