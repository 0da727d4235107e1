package directory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const redisSnapshotKey = "luckybase:directory:latest"

var ErrNoSnapshot = errors.New("directory has not been loaded yet")

// SnapshotStore keeps only the latest directory snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot model.DirectorySnapshot) error
	Latest(ctx context.Context) (model.DirectorySnapshot, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	snapshot *model.DirectorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, snapshot model.DirectorySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snapshot
	return nil
}

func (m *MemoryStore) Latest(_ context.Context) (model.DirectorySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return model.DirectorySnapshot{}, ErrNoSnapshot
	}
	return *m.snapshot, nil
}

// RedisStore shares the latest snapshot between service instances.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

func (r *RedisStore) Save(ctx context.Context, snapshot model.DirectorySnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisSnapshotKey, raw, 0).Err()
}

func (r *RedisStore) Latest(ctx context.Context) (model.DirectorySnapshot, error) {
	raw, err := r.rdb.Get(ctx, redisSnapshotKey).Bytes()
	if err == redis.Nil {
		return model.DirectorySnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return model.DirectorySnapshot{}, err
	}
	snapshot, err := utils.JsonDecodeByteStream[model.DirectorySnapshot](raw)
	if err != nil {
		return model.DirectorySnapshot{}, err
	}
	return *snapshot, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
