package cartclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSnapshot is returned by Storage.Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("cart snapshot not found")

// Storage persists serialized snapshots under a key.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryStorage keeps snapshots in process memory.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), raw...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileStorage writes one JSON file per key inside dir.
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir when needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("storage directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, unsafeFileChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return raw, err
}

// Save writes a temp file and renames it over the target.
func (f *FileStorage) Save(_ context.Context, key string, data []byte) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".cart-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// redisKV is the slice of pkg/redis.Client the redis storage needs.
type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartSnapshotKey(sessionID string) string
}

// RedisStorage keeps one snapshot per browser session in redis.
type RedisStorage struct {
	client    redisKV
	sessionID string
	ttl       time.Duration
}

// NewRedisStorage scopes snapshots to sessionID. A zero ttl keeps them forever.
func NewRedisStorage(client redisKV, sessionID string, ttl time.Duration) (*RedisStorage, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if sessionID == "" {
		return nil, errors.New("session id required")
	}
	return &RedisStorage{client: client, sessionID: sessionID, ttl: ttl}, nil
}

// Load ignores key; the redis client already namespaces snapshots under StorageKey.
func (r *RedisStorage) Load(ctx context.Context, _ string) ([]byte, error) {
	raw, err := r.client.Get(ctx, r.client.CartSnapshotKey(r.sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func (r *RedisStorage) Save(ctx context.Context, _ string, data []byte) error {
	return r.client.Set(ctx, r.client.CartSnapshotKey(r.sessionID), string(data), r.ttl)
}
