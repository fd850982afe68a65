package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitExhaustedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.Clock = func() time.Time { return now }

	tracker.Record(GlobalBucket, 35, 0, now.Add(200*time.Millisecond))

	wait, d := tracker.Wait(GlobalBucket)
	require.True(t, wait)
	require.Equal(t, 200*time.Millisecond, d)

	now = now.Add(250 * time.Millisecond)
	wait, d = tracker.Wait(GlobalBucket)
	require.False(t, wait)
	require.Zero(t, d)
}

func TestWaitRemainingBudget(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.Clock = func() time.Time { return now }

	tracker.Record(GlobalBucket, 35, 12, now.Add(time.Minute))

	wait, d := tracker.Wait(GlobalBucket)
	require.False(t, wait)
	require.Zero(t, d)
}

func TestWaitUnknownBucket(t *testing.T) {
	tracker := NewTracker()
	wait, d := tracker.Wait(GlobalBucket)
	require.False(t, wait)
	require.Zero(t, d)
}

func TestRecordReplacesWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.Clock = func() time.Time { return now }

	tracker.Record(GlobalBucket, 35, 0, now.Add(time.Minute))
	tracker.Record(GlobalBucket, 35, 20, now.Add(time.Minute))

	window, ok := tracker.Status(GlobalBucket)
	require.True(t, ok)
	require.Equal(t, 20, window.Remaining)

	wait, _ := tracker.Wait(GlobalBucket)
	require.False(t, wait)
}

func TestClear(t *testing.T) {
	now := time.Now().UTC()
	tracker := NewTracker()
	tracker.Record(GlobalBucket, 35, 0, now.Add(time.Minute))
	tracker.Record("commands", 10, 0, now.Add(time.Minute))

	tracker.Clear(GlobalBucket)
	_, ok := tracker.Status(GlobalBucket)
	require.False(t, ok)
	_, ok = tracker.Status("commands")
	require.True(t, ok)

	tracker.ClearAll()
	_, ok = tracker.Status("commands")
	require.False(t, ok)
}
