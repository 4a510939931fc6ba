package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zkrex/zkrex/internal/types"
)

// AnonymousSubject is the cache slot used for records written before a wallet
// address was known.
const AnonymousSubject = "anonymous"

// VerificationStore persists verification records keyed by
// (namespace, subject) and notifies every observer of writes, so a second
// session sharing the cache re-derives its state without a reload.
type VerificationStore struct {
	cache     *RedisCache
	namespace string
}

// NewVerificationStore creates a store under the configured namespace.
func NewVerificationStore(cache *RedisCache, namespace string) *VerificationStore {
	if namespace == "" {
		namespace = "zkrex:identity"
	}
	return &VerificationStore{cache: cache, namespace: namespace}
}

func (s *VerificationStore) key(subjectID string) string {
	return fmt.Sprintf("%s:%s", s.namespace, subjectKey(subjectID))
}

func (s *VerificationStore) channel() string {
	return s.namespace + ":events"
}

func subjectKey(subjectID string) string {
	if subjectID == "" {
		return AnonymousSubject
	}
	return types.NormalizeAddress(subjectID)
}

// Read returns the record for a subject, or nil when none is cached.
func (s *VerificationStore) Read(ctx context.Context, subjectID string) (*types.VerificationRecord, error) {
	raw, err := s.cache.Client().Get(ctx, s.key(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read verification record: %w", err)
	}

	var record types.VerificationRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// A corrupt record is treated as absent rather than blocking the
		// gate; the proof flow is the safe fallback path.
		return nil, nil
	}
	return &record, nil
}

// Write replaces the subject's record wholesale and publishes a change
// notification. Writes are last-write-wins; concurrent sessions racing on the
// same subject keep the last writer's record.
func (s *VerificationStore) Write(ctx context.Context, subjectID string, record types.VerificationRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode verification record: %w", err)
	}

	if err := s.cache.Client().Set(ctx, s.key(subjectID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write verification record: %w", err)
	}

	// Best effort: a missed notification only delays observers until their
	// next read, it never loses the record itself.
	s.cache.Client().Publish(ctx, s.channel(), subjectKey(subjectID))
	return nil
}

// Subscribe returns a channel of subject keys whose records changed, plus a
// stop function. The channel closes when the context ends or stop is called.
func (s *VerificationStore) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	pubsub := s.cache.Client().Subscribe(ctx, s.channel())

	// Force the subscription to be established before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to verification events: %w", err)
	}

	out := make(chan string, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// Drop rather than block; readers re-read the store.
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return out, stop, nil
}
