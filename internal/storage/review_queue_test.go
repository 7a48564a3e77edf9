package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReview(tenantID string, priority model.ReviewPriority, createdAt time.Time) *model.ReviewQueueEntry {
	expected := decimal.NewFromInt(100000)
	return &model.ReviewQueueEntry{
		ID:         uuid.NewString(),
		DecisionID: uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: "customer-1",
		InvoiceID:  "inv-" + uuid.NewString()[:8],
		Expected: model.Invoice{
			ExpectedAmount:        &expected,
			ExpectedCurrency:      "KHR",
			ExpectedRecipientName: "TEST MERCHANT",
		},
		Extracted: model.ExtractionResult{RecipientName: "TEST MERCHNT", Currency: "KHR"},
		Breakdown: model.ConfidenceBreakdown{Combined: 0.6},
		Priority:  priority,
		Status:    model.ReviewPending,
		CreatedAt: createdAt,
	}
}

func TestEnqueueReview_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := testReview("tenant-1", model.PriorityMedium, time.Now().UTC())
	require.NoError(t, store.EnqueueReview(ctx, entry))
	// Enqueueing the same id twice keeps a single entry.
	require.NoError(t, store.EnqueueReview(ctx, entry))

	got, err := store.GetReview(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, got.Status)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, "TEST MERCHANT", got.Expected.ExpectedRecipientName)
	require.NotNil(t, got.Expected.ExpectedAmount)
	assert.True(t, got.Expected.ExpectedAmount.Equal(decimal.NewFromInt(100000)))
	assert.Nil(t, got.ReviewedAt)

	all, err := store.ListReviews(ctx, model.ReviewFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetReview_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetReview(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListReviews_PriorityOrderAndFilters(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	lowOld := testReview("tenant-1", model.PriorityLow, base)
	highNew := testReview("tenant-1", model.PriorityHigh, base.Add(10*time.Minute))
	highOld := testReview("tenant-1", model.PriorityHigh, base.Add(time.Minute))
	medium := testReview("tenant-1", model.PriorityMedium, base)
	otherTenant := testReview("tenant-2", model.PriorityHigh, base)

	for _, e := range []*model.ReviewQueueEntry{lowOld, highNew, highOld, medium, otherTenant} {
		require.NoError(t, store.EnqueueReview(ctx, e))
	}

	entries, err := store.ListReviews(ctx, model.ReviewFilter{TenantID: "tenant-1", Status: model.ReviewPending})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	ids := []string{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID}
	assert.Equal(t, []string{highOld.ID, highNew.ID, medium.ID, lowOld.ID}, ids)

	limited, err := store.ListReviews(ctx, model.ReviewFilter{TenantID: "tenant-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestResolveReview_OnlyOnce(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := testReview("tenant-1", model.PriorityHigh, time.Now().UTC())
	require.NoError(t, store.EnqueueReview(ctx, entry))

	amount := decimal.NewFromInt(100000)
	resolved, err := store.ResolveReview(ctx, service.ReviewResolution{
		ID:          entry.ID,
		Status:      model.ReviewApproved,
		ReviewedBy:  "ops@example.com",
		Corrections: &model.Corrections{RecipientName: "TEST MERCHANT", Amount: &amount},
	})
	require.NoError(t, err)
	assert.True(t, resolved)

	resolved, err = store.ResolveReview(ctx, service.ReviewResolution{
		ID:         entry.ID,
		Status:     model.ReviewRejected,
		ReviewedBy: "someone-else",
		Reason:     "late",
	})
	require.NoError(t, err)
	assert.False(t, resolved, "terminal entries cannot be resolved again")

	got, err := store.GetReview(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.Status)
	assert.Equal(t, "ops@example.com", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	require.NotNil(t, got.Corrections)
	assert.Equal(t, "TEST MERCHANT", got.Corrections.RecipientName)

	pending, err := store.ListReviews(ctx, model.ReviewFilter{Status: model.ReviewPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveReview_ConcurrentResolversSingleWinner(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := testReview("tenant-1", model.PriorityLow, time.Now().UTC())
	require.NoError(t, store.EnqueueReview(ctx, entry))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ResolveReview(ctx, service.ReviewResolution{
				ID:         entry.ID,
				Status:     model.ReviewRejected,
				ReviewedBy: "ops",
			})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestResolveReview_Missing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ok, err := store.ResolveReview(context.Background(), service.ReviewResolution{
		ID:         "missing",
		Status:     model.ReviewApproved,
		ReviewedBy: "ops",
	})
	require.NoError(t, err)
	assert.False(t, ok)
}
