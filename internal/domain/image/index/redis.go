package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed artifact index.
// Layout: <prefix>:artifact:<path> holds the entry, <prefix>:source:<source>
// the set of its paths, <prefix>:artifacts the set of all paths.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "blogimg"
	}
	return &redisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (s *redisStore) artifactKey(path string) string {
	return s.prefix + ":artifact:" + path
}

func (s *redisStore) sourceKey(source string) string {
	return s.prefix + ":source:" + source
}

func (s *redisStore) allKey() string {
	return s.prefix + ":artifacts"
}

func (s *redisStore) Record(ctx context.Context, entry Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("artifact path required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.artifactKey(entry.Path), data, 0)
		pipe.SAdd(ctx, s.sourceKey(entry.Source), entry.Path)
		pipe.SAdd(ctx, s.allKey(), entry.Path)
		return nil
	})
	return err
}

func (s *redisStore) Get(ctx context.Context, path string) (Entry, error) {
	raw, err := s.client.Get(ctx, s.artifactKey(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Entry{}, err
	}
	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *redisStore) ListBySource(ctx context.Context, source string) ([]Entry, error) {
	paths, err := s.client.SMembers(ctx, s.sourceKey(source)).Result()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, s.artifactKey(p))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := sonic.UnmarshalString(raw, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	sortEntries(out)
	return out, nil
}

func (s *redisStore) Remove(ctx context.Context, path string) error {
	entry, err := s.Get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.client.SRem(ctx, s.allKey(), path).Err()
		}
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.artifactKey(path))
		pipe.SRem(ctx, s.sourceKey(entry.Source), path)
		pipe.SRem(ctx, s.allKey(), path)
		return nil
	})
	return err
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	total, err := s.client.SCard(ctx, s.allKey()).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":   DriverRedis,
		"total":  total,
		"prefix": s.prefix,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
