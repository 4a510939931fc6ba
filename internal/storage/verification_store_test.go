package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrex/zkrex/internal/types"
)

const testSubject = "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa"

// setupTestCache creates a RedisCache backed by a test Redis instance.
func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return NewRedisCacheFromClient(client), mr
}

func TestVerificationStore_ReadMissingRecord(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	record, err := store.Read(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestVerificationStore_WriteThenRead(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	written := types.VerificationRecord{
		Verified:  true,
		At:        time.Now().UTC().Truncate(time.Second),
		SubjectID: types.NormalizeAddress(testSubject),
	}
	require.NoError(t, store.Write(context.Background(), testSubject, written))

	record, err := store.Read(context.Background(), testSubject)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Verified)
	assert.Equal(t, written.SubjectID, record.SubjectID)
	assert.True(t, written.At.Equal(record.At))
}

func TestVerificationStore_SubjectKeysAreCaseInsensitive(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	record := types.VerificationRecord{Verified: true, At: time.Now()}
	require.NoError(t, store.Write(context.Background(), testSubject, record))

	// Reading with different casing hits the same slot.
	got, err := store.Read(context.Background(), types.NormalizeAddress(testSubject))
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestVerificationStore_AnonymousSubjectIsSeparate(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	record := types.VerificationRecord{Verified: true, At: time.Now()}
	require.NoError(t, store.Write(context.Background(), "", record))

	anon, err := store.Read(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, anon, "anonymous slot must hold the record")

	addressed, err := store.Read(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Nil(t, addressed, "anonymous record must not leak onto an address")
}

func TestVerificationStore_CorruptRecordTreatedAsAbsent(t *testing.T) {
	cache, mr := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	require.NoError(t, mr.Set("test:identity:"+types.NormalizeAddress(testSubject), "{not json"))

	record, err := store.Read(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestVerificationStore_WritePublishesSubjectKey(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer stop()

	record := types.VerificationRecord{Verified: true, At: time.Now()}
	require.NoError(t, store.Write(ctx, testSubject, record))

	select {
	case subject := <-events:
		assert.Equal(t, types.NormalizeAddress(testSubject), subject)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestVerificationStore_StopIsIdempotent(t *testing.T) {
	cache, _ := setupTestCache(t)
	store := NewVerificationStore(cache, "test:identity")

	_, stop, err := store.Subscribe(context.Background())
	require.NoError(t, err)

	stop()
	stop()
}
