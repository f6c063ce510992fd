package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/ems-interactions-api/interfaces"
)

// exerciseStore runs the lifecycle every SessionStore must support
func exerciseStore(t *testing.T, store interfaces.SessionStore) {
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err, "session ids are uuids")
	assert.Equal(t, 0, s.Selection.Len())

	s.Selection.Add("Fentanyl")
	s.Selection.Add("Midazolam")
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fentanyl", "Midazolam"}, loaded.Selection.Names())
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))

	loaded.Selection.Remove("Fentanyl")
	require.NoError(t, store.Save(ctx, loaded))

	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Midazolam"}, again.Selection.Names())

	updated, err := store.Update(ctx, s.ID, func(sess *interfaces.Session) error {
		sess.Selection.Add("Naloxone")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Midazolam", "Naloxone"}, updated.Selection.Names())

	// an error from fn leaves the stored session untouched
	boom := errors.New("rejected")
	_, err = store.Update(ctx, s.ID, func(sess *interfaces.Session) error {
		sess.Selection.Clear()
		return boom
	})
	assert.ErrorIs(t, err, boom)
	again, err = store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Midazolam", "Naloxone"}, again.Selection.Names())

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, s.ID), ErrSessionNotFound)

	// a stale copy cannot bring a deleted session back
	assert.ErrorIs(t, store.Save(ctx, again), ErrSessionNotFound)
	_, err = store.Update(ctx, s.ID, func(*interfaces.Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// exerciseConcurrentAdds adds distinct names from many goroutines; none may be lost
func exerciseConcurrentAdds(t *testing.T, store interfaces.SessionStore) {
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := store.Update(ctx, s.ID, func(sess *interfaces.Session) error {
				sess.Selection.Add(name)
				return nil
			})
			errs <- err
		}(fmt.Sprintf("Medication %d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, loaded.Selection.Len())
	require.NoError(t, store.Delete(ctx, s.ID))
}

func TestMemoryStoreLifecycle(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	exerciseConcurrentAdds(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	s, err := store.Create(ctx)
	require.NoError(t, err)

	// unsaved changes stay local to the caller
	s.Selection.Add("Aspirin")
	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Selection.Len())

	loaded.Selection.Add("Warfarin")
	other, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Selection.Len())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count(ctx))

	time.Sleep(100 * time.Millisecond)

	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreUnknownID(t *testing.T) {
	_, err := NewMemoryStore(time.Hour).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreLifecycle(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, time.Minute)
	exerciseStore(t, store)
	exerciseConcurrentAdds(t, store)

	s, err := store.Create(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, store.Count(ctx), 1)

	ttl, err := client.TTL(ctx, sessionKey(s.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	require.NoError(t, store.Delete(ctx, s.ID))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "ems:selection:abc", sessionKey("abc"))
}
