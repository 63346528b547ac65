package attempt

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	tr := NewTracker(Config{}, zerolog.Nop())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestCheckAllowsFreshIdentifier(t *testing.T) {
	tr, _ := newTestTracker(t)

	res := tr.Check("alice")
	assert.True(t, res.Allowed)
	assert.Equal(t, DefaultThreshold, res.AttemptsRemaining)
}

func TestLockoutAfterThresholdFailures(t *testing.T) {
	tr, now := newTestTracker(t)
	first := *now

	for i := 0; i < DefaultThreshold; i++ {
		tr.Record("alice", false, "10.0.0.1")
		*now = now.Add(10 * time.Second)
	}

	res := tr.Check("alice")
	require.False(t, res.Allowed)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, first.Add(DefaultWindow), res.LockoutExpiresAt)
}

func TestLockoutLiftsWhenOldestFailureAgesOut(t *testing.T) {
	tr, now := newTestTracker(t)

	for i := 0; i < DefaultThreshold; i++ {
		tr.Record("alice", false, "")
		*now = now.Add(time.Minute)
	}
	require.False(t, tr.Check("alice").Allowed)

	// The first failure was 5 minutes ago; advance until it leaves the
	// window. No reset call is ever made.
	*now = now.Add(DefaultWindow - 4*time.Minute)
	res := tr.Check("alice")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.AttemptsRemaining)
}

func TestSuccessDoesNotResetWindow(t *testing.T) {
	tr, _ := newTestTracker(t)

	for i := 0; i < DefaultThreshold-1; i++ {
		tr.Record("bob", false, "")
	}
	tr.Record("bob", true, "")

	// Four failures still count; one more locks.
	res := tr.Check("bob")
	require.True(t, res.Allowed)
	assert.Equal(t, 1, res.AttemptsRemaining)

	tr.Record("bob", false, "")
	assert.False(t, tr.Check("bob").Allowed)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	tr, now := newTestTracker(t)

	for i := 0; i < DefaultMaxEntries+5; i++ {
		tr.Record("carol", true, "")
		*now = now.Add(time.Second)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Len(t, tr.attempts["carol"], DefaultMaxEntries)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(t)

	for i := 0; i < DefaultThreshold; i++ {
		tr.Record("mallory", false, "")
	}

	assert.False(t, tr.Check("mallory").Allowed)
	assert.True(t, tr.Check("alice").Allowed)
}

func TestCleanupDropsIdleIdentifiers(t *testing.T) {
	tr, now := newTestTracker(t)

	for i := 0; i < 3; i++ {
		tr.Record(fmt.Sprintf("user%d", i), false, "")
	}
	*now = now.Add(DefaultWindow + time.Minute)
	tr.cleanup()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Empty(t, tr.attempts)
}

func TestConcurrentRecordsAreNotLost(t *testing.T) {
	tr := NewTracker(Config{MaxEntries: 200}, zerolog.Nop())

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func() {
			tr.Record("dave", false, "")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Len(t, tr.attempts["dave"], 100)
}
