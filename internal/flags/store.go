package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultNamespace = "flags"

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Store keeps boolean flags in Redis: one JSON value per flag under
// <namespace>:<key> and a set of keys under <namespace>:index.
type Store struct {
	client    redis.Cmdable
	namespace string
}

func NewStore(client redis.Cmdable) (*Store, error) {
	return NewStoreWithNamespace(client, defaultNamespace)
}

func NewStoreWithNamespace(client redis.Cmdable, namespace string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Store{client: client, namespace: namespace}, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *Store) indexKey() string {
	return s.namespace + ":index"
}

func (s *Store) valueKey(key string) string {
	return s.namespace + ":" + key
}

func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.valueKey(key), b, 0)
	pipe.SAdd(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}
	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, s.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	var f Flag
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}

// List returns every indexed flag sorted by key. Index entries whose value
// is gone or unreadable are skipped.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}

	valueKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if ValidateKey(k) == nil {
			valueKeys = append(valueKeys, s.valueKey(k))
		}
	}
	out := []*Flag{}
	if len(valueKeys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var f Flag
		if json.Unmarshal([]byte(raw), &f) == nil {
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.valueKey(key))
	pipe.SRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	return nil
}
