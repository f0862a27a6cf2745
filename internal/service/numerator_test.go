package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"backoffice/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func fixedNumerator(seq *fakeSequenceRepo, maxAttempts int) *Numerator {
	n := NewNumerator(seq, maxAttempts, logger.Nop())
	n.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return n
}

func neverTaken(context.Context, string) (bool, error) { return false, nil }

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "ORD-2026-000001", FormatNumber(PrefixOrder, 2026, 1))
	assert.Equal(t, "INV-2026-123456", FormatNumber(PrefixInvoice, 2026, 123456))
	assert.Equal(t, "EXP-2026-1234567", FormatNumber(PrefixExpense, 2026, 1234567))
}

func TestNumerator_SequentialPerPrefix(t *testing.T) {
	n := fixedNumerator(newFakeSequenceRepo(), 5)
	ctx := context.Background()

	first, err := n.Next(ctx, PrefixOrder, neverTaken)
	require.NoError(t, err)
	second, err := n.Next(ctx, PrefixOrder, neverTaken)
	require.NoError(t, err)
	inv, err := n.Next(ctx, PrefixInvoice, neverTaken)
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-000001", first)
	assert.Equal(t, "ORD-2026-000002", second)
	assert.Equal(t, "INV-2026-000001", inv)
}

func TestNumerator_SkipsTakenNumbers(t *testing.T) {
	n := fixedNumerator(newFakeSequenceRepo(), 5)
	taken := map[string]bool{"ORD-2026-000001": true, "ORD-2026-000002": true}

	num, err := n.Next(context.Background(), PrefixOrder, func(_ context.Context, s string) (bool, error) {
		return taken[s], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-000003", num)
}

func TestNumerator_FallsBackToTimestamp(t *testing.T) {
	seq := newFakeSequenceRepo()
	n := fixedNumerator(seq, 3)
	want := fmt.Sprintf("ORD-%d", n.now().UnixMilli())

	num, err := n.Next(context.Background(), PrefixOrder, func(context.Context, string) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.Equal(t, want, num)
	assert.Equal(t, int64(3), seq.values["ORD_2026"], "one counter value per attempt")

	seq.err = errors.New("connection reset")
	num, err = n.Next(context.Background(), PrefixOrder, neverTaken)
	require.NoError(t, err)
	assert.Equal(t, want, num)
}

func TestNumerator_ConcurrentCallsAreUnique(t *testing.T) {
	n := fixedNumerator(newFakeSequenceRepo(), 5)

	const workers = 100
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, workers)
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			num, err := n.Next(ctx, PrefixExpense, neverTaken)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[num] {
				return fmt.Errorf("duplicate number %s", num)
			}
			seen[num] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, workers)
	assert.True(t, seen["EXP-2026-000100"])
}

func TestNumerator_CanceledContext(t *testing.T) {
	n := fixedNumerator(newFakeSequenceRepo(), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Next(ctx, PrefixOrder, neverTaken)
	assert.ErrorIs(t, err, context.Canceled)
}
