package persistency

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "configprovider:set:"

// Redis is a storage-backed Persistency using a Redis key per set,
// under the "configprovider:set:{name}" namespace. Payloads are the
// raw canonical JSON, optionally gzip-compressed.
type Redis struct {
	client      redis.UniversalClient
	ttl         time.Duration
	compression bool
	logger      *slog.Logger
}

// NewRedis dials addr and verifies connectivity before returning.
func NewRedis(addr, password string, db int, ttl time.Duration, compression bool, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl, compression: compression, logger: logger}, nil
}

// NewRedisWithClient wraps an already-constructed client (e.g. a
// miniredis-backed one in tests).
func NewRedisWithClient(client redis.UniversalClient, ttl time.Duration, compression bool, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, compression: compression, logger: logger}
}

func (r *Redis) key(name string) string {
	return redisKeyPrefix + name
}

func (r *Redis) ReadCachedParameterSets(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	var cursor uint64
	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached parameter sets: %w", err)
		}
		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				r.logger.Warn("failed to read cached parameter set, skipping", "key", key, "error", err)
				continue
			}
			decoded, err := r.maybeDecompress(data)
			if err != nil {
				r.logger.Warn("failed to decompress cached parameter set, skipping", "key", key, "error", err)
				continue
			}
			entries = append(entries, Entry{Name: key[len(redisKeyPrefix):], JSON: string(decoded)})
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

func (r *Redis) CacheParameterSet(ctx context.Context, entry Entry, _ bool) error {
	payload, err := r.maybeCompress([]byte(entry.JSON))
	if err != nil {
		return fmt.Errorf("failed to compress parameter set %s: %w", entry.Name, err)
	}
	if err := r.client.Set(ctx, r.key(entry.Name), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache parameter set %s: %w", entry.Name, err)
	}
	return nil
}

// SyncToStorage is a no-op: every CacheParameterSet write already went
// straight to Redis, so there is nothing buffered to flush.
func (r *Redis) SyncToStorage(_ context.Context) error {
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) maybeCompress(data []byte) ([]byte, error) {
	if !r.compression {
		return data, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Redis) maybeDecompress(data []byte) ([]byte, error) {
	if !r.compression {
		return data, nil
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
