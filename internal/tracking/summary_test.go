package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/gps"
)

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	sess, err := store.CreateSession(ctx, "", t0)
	require.NoError(t, err)
	// about 111 m apart
	_, err = store.SaveLocations(ctx, sess.ID, []gps.Fix{
		fixAt(0, 0),
		fixAt(20*time.Second, 0.002),
		fixAt(10*time.Second, 0.001),
	})
	require.NoError(t, err)

	s, err := Summarize(ctx, store, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, s.SessionID)
	assert.True(t, s.Active)
	assert.Equal(t, 3, s.PointCount)
	assert.InDelta(t, 222.4, s.Distance, 1)
	assert.Equal(t, 20*time.Second, s.Elapsed, "active sessions run to the last entry")
	assert.InDelta(t, s.Distance/20, s.AverageSpeed, 1e-9)

	_, err = store.EndSession(ctx, sess.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	s, err = Summarize(ctx, store, sess.ID)
	require.NoError(t, err)
	assert.False(t, s.Active)
	assert.Equal(t, time.Minute, s.Elapsed)
}

func TestSummarize_EmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	sess, err := store.CreateSession(ctx, "", t0)
	require.NoError(t, err)
	s, err := Summarize(ctx, store, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, Summary{SessionID: sess.ID, Active: true}, s)

	_, err = Summarize(ctx, store, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
