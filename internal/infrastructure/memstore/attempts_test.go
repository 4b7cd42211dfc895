package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kset/verifikator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(state string) *domain.VerificationAttempt {
	return &domain.VerificationAttempt{
		State:     state,
		Origin:    "web",
		Status:    domain.AttemptPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
}

func TestUpsertGetRoundtrip(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.State)
	assert.Equal(t, domain.AttemptPending, got.Status)
	assert.Nil(t, got.ResolvedAt)
}

func TestGetUnknownState(t *testing.T) {
	repo := NewAttemptRepo()

	_, err := repo.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetReturnsCopy(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	first, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	first.Status = domain.AttemptFail

	second, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPending, second.Status)
}

func TestTransitionOnce(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	got, err := repo.Transition(ctx, "s1", domain.AttemptSuccess, "a@kset.org")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSuccess, got.Status)
	assert.Equal(t, "a@kset.org", got.ResolvedEmail)
	require.NotNil(t, got.ResolvedAt)

	_, err = repo.Transition(ctx, "s1", domain.AttemptFail, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyResolved))

	// The losing transition must not have touched the record.
	after, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSuccess, after.Status)
	assert.Equal(t, "a@kset.org", after.ResolvedEmail)
}

func TestTransitionRejectsNonTerminalTarget(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	_, err := repo.Transition(ctx, "s1", domain.AttemptPending, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestTransitionUnknownState(t *testing.T) {
	repo := NewAttemptRepo()

	_, err := repo.Transition(context.Background(), "missing", domain.AttemptFail, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUpsertResetsResolution(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	_, err := repo.Transition(ctx, "s1", domain.AttemptSuccess, "a@kset.org")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, pending("s1")))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPending, got.Status)
	assert.Empty(t, got.ResolvedEmail)
	assert.Nil(t, got.ResolvedAt)
}

func TestUpsertPurgesExpiredTerminalRecords(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()

	stale := pending("old")
	stale.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, repo.Upsert(ctx, stale))
	_, err := repo.Transition(ctx, "old", domain.AttemptFail, "")
	require.NoError(t, err)

	// Pending records never get purged, regardless of TTL.
	stalePending := pending("old-pending")
	stalePending.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, repo.Upsert(ctx, stalePending))

	require.NoError(t, repo.Upsert(ctx, pending("fresh")))

	_, err = repo.Get(ctx, "old")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = repo.Get(ctx, "old-pending")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestTransitionConcurrentSingleWinner(t *testing.T) {
	repo := NewAttemptRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, pending("contended")))

	const racers = 100
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Transition(ctx, "contended", domain.AttemptSuccess, "a@kset.org")
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domain.ErrAlreadyResolved):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, racers-1, losers)
}
