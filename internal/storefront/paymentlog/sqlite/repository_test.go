package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

func TestRepository_SaveAndListByOrder(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "payments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*paymentlog.Entry{
		{OrderID: "order-1", Status: paymentlog.StatusPaymentRecorded, PaymentRef: "pi_1", CreatedAt: base.Add(time.Second)},
		{OrderID: "order-1", Status: paymentlog.StatusOrderPlaced, CreatedAt: base},
		{OrderID: "order-2", Status: paymentlog.StatusOrderPlaced, CreatedAt: base},
		{OrderID: "order-1", Status: paymentlog.StatusPaymentSucceeded, PaymentRef: "pi_1", EventID: "evt_1", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Save(ctx, e))
	}

	got, err := repo.ListByOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, paymentlog.StatusOrderPlaced, got[0].Status)
	assert.Equal(t, paymentlog.StatusPaymentRecorded, got[1].Status)
	assert.Equal(t, paymentlog.StatusPaymentSucceeded, got[2].Status)
	assert.Equal(t, "evt_1", got[2].EventID)
	assert.True(t, got[2].CreatedAt.Equal(base.Add(2*time.Second)))
}

func TestRepository_ListByOrder_Empty(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "payments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	got, err := repo.ListByOrder(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
