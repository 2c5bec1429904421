package requests_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	"github.com/dvloznov/wealthwisdom/internal/requests/inmemory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker() (*requests.Tracker, *inmemory.Store) {
	store := inmemory.NewStore(10)
	clock := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tr := requests.NewTracker(store, zerolog.Nop(), requests.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return tr, store
}

func TestTracker_BeginSucceed(t *testing.T) {
	ctx := context.Background()
	tr, store := newTracker()
	assert.Equal(t, requests.PhaseIdle, tr.Phase())

	req, err := tr.Begin(ctx, requests.KindParseText)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, requests.StatusInFlight, req.Status)
	assert.Equal(t, requests.PhaseInFlight, tr.Phase())

	state := tr.State()
	require.NotNil(t, state.Current)
	assert.Equal(t, req.ID, state.Current.ID)

	require.NoError(t, tr.Succeed(ctx, req, "tx-1"))
	assert.Equal(t, requests.PhaseIdle, tr.Phase())

	state = tr.State()
	assert.Nil(t, state.Current)
	require.NotNil(t, state.Last)
	assert.Equal(t, requests.StatusSucceeded, state.Last.Status)
	assert.Equal(t, "tx-1", state.Last.TransactionID)
	require.NotNil(t, state.Last.CompletedAt)
	assert.True(t, state.Last.CompletedAt.After(state.Last.StartedAt))

	stored, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSucceeded, stored.Status)
}

func TestTracker_BusyWhileInFlight(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	first, err := tr.Begin(ctx, requests.KindParseReceipt)
	require.NoError(t, err)

	_, err = tr.Begin(ctx, requests.KindAnalyzeHabits)
	assert.ErrorIs(t, err, requests.ErrBusy)

	require.NoError(t, tr.Fail(ctx, first, errors.New("boom")))

	_, err = tr.Begin(ctx, requests.KindAnalyzeHabits)
	assert.NoError(t, err)
}

func TestTracker_FailRecordsGatewayKind(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	req, err := tr.Begin(ctx, requests.KindParseText)
	require.NoError(t, err)

	cause := &gateway.Failure{Op: "ParseFreeText", Kind: gateway.KindSchema, Err: gateway.ErrEmptyResponse}
	require.NoError(t, tr.Fail(ctx, req, cause))

	last := tr.State().Last
	require.NotNil(t, last)
	assert.Equal(t, requests.StatusFailed, last.Status)
	assert.Equal(t, "schema", last.FailureKind)
	assert.Contains(t, last.Error, "empty response")
	assert.Empty(t, last.TransactionID)
}

func TestTracker_CompleteUnknownRequest(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	assert.Error(t, tr.Succeed(ctx, &requests.Request{ID: "nope"}, ""))

	req, err := tr.Begin(ctx, requests.KindParseText)
	require.NoError(t, err)
	require.NoError(t, tr.Succeed(ctx, req, ""))
	assert.Error(t, tr.Succeed(ctx, req, ""), "completing twice is rejected")
}

func TestTracker_ConcurrentBeginAdmitsOne(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		busy     int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Begin(ctx, requests.KindParseText)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if errors.Is(err, requests.ErrBusy) {
				busy++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 19, busy)
}

func TestTracker_History(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	for _, kind := range []requests.Kind{requests.KindParseText, requests.KindAnalyzeHabits, requests.KindParseText} {
		req, err := tr.Begin(ctx, kind)
		require.NoError(t, err)
		require.NoError(t, tr.Succeed(ctx, req, ""))
	}

	all, err := tr.History(ctx, requests.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, requests.KindParseText, all[0].Kind)
	assert.Equal(t, requests.KindAnalyzeHabits, all[1].Kind)

	got, err := tr.Get(ctx, all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, all[1].ID, got.ID)

	_, err = tr.Get(ctx, "missing")
	assert.ErrorIs(t, err, requests.ErrNotFound)
}
