// ABOUTME: Tests for verification code issuing and checking
// ABOUTME: Covers one-shot consumption, expiry, attempt limits, and replacement
package verify

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codesEnv struct {
	codes *Codes
	now   time.Time
	next  string
}

func newCodesEnv(t *testing.T, store Store) *codesEnv {
	t.Helper()

	env := &codesEnv{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), next: "123456"}
	env.codes = NewCodes(store, Options{
		TTL:         10 * time.Minute,
		MaxAttempts: 3,
		Now:         func() time.Time { return env.now },
		Generate:    func() (string, error) { return env.next, nil },
		Logger:      log.New(io.Discard),
	})
	return env
}

func TestCodesIssueAndCheck(t *testing.T) {
	ctx := context.Background()

	for name, store := range map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(nil) },
		"badger": func(t *testing.T) Store { return openTestBadger(t) },
	} {
		t.Run(name, func(t *testing.T) {
			env := newCodesEnv(t, store(t))

			code, expiresAt, err := env.codes.Issue(ctx, "+15555550100")
			require.NoError(t, err)
			assert.Equal(t, "123456", code)
			assert.Equal(t, env.now.Add(10*time.Minute), expiresAt)

			ok, err := env.codes.Check(ctx, "+15555550100", "000000")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = env.codes.Check(ctx, "+15555550100", "123456")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = env.codes.Check(ctx, "+15555550100", "123456")
			require.NoError(t, err)
			assert.False(t, ok, "a code can only be used once")
		})
	}
}

func TestCodesExpire(t *testing.T) {
	ctx := context.Background()
	env := newCodesEnv(t, NewMemoryStore(nil))

	_, _, err := env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	env.now = env.now.Add(10 * time.Minute)
	ok, err := env.codes.Check(ctx, "+15555550100", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodesDiscardedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	env := newCodesEnv(t, NewMemoryStore(nil))

	_, _, err := env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := env.codes.Check(ctx, "+15555550100", "999999")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := env.codes.Check(ctx, "+15555550100", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "correct code is rejected once the attempt budget is spent")
}

func TestCodesReissueReplacesOutstanding(t *testing.T) {
	ctx := context.Background()
	env := newCodesEnv(t, NewMemoryStore(nil))

	_, _, err := env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	env.next = "654321"
	_, _, err = env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	ok, err := env.codes.Check(ctx, "+15555550100", "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.codes.Check(ctx, "+15555550100", "654321")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCodesKeyedByDestination(t *testing.T) {
	ctx := context.Background()
	env := newCodesEnv(t, NewMemoryStore(nil))

	_, _, err := env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	ok, err := env.codes.Check(ctx, "+15555550199", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueRequiresDestination(t *testing.T) {
	env := newCodesEnv(t, NewMemoryStore(nil))

	_, _, err := env.codes.Issue(context.Background(), "")
	assert.Error(t, err)
}

func TestRandomCodeFormat(t *testing.T) {
	code, err := randomCode()
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
}

// slowStore widens the window between reading and rewriting a record.
type slowStore struct {
	Store
}

func (s slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Get(ctx, key)
}

func TestConcurrentMissesRespectAttemptLimit(t *testing.T) {
	ctx := context.Background()
	env := newCodesEnv(t, slowStore{NewMemoryStore(nil)})

	_, _, err := env.codes.Issue(ctx, "+15555550100")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := env.codes.Check(ctx, "+15555550100", "999999")
			assert.NoError(t, err)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	ok, err := env.codes.Check(ctx, "+15555550100", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "the attempt budget is spent even when misses arrive together")
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	var k keyedMutex

	unlockA := k.lock("a")
	unlockB := k.lock("b")
	assert.Len(t, k.locks, 2)

	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}
