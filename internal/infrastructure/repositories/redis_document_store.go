package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// RedisDocumentStore keeps each document in a hash {version, body}. Commit uses optimistic
// locking: every touched key is WATCHed, versions are compared, and writes go out in MULTI/EXEC.
type RedisDocumentStore struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisDocumentStore(client *redis.Client, prefix string, logger *logrus.Logger) *RedisDocumentStore {
	if prefix == "" {
		prefix = "doc"
	}
	return &RedisDocumentStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisDocumentStore) redisKey(k ports.DocumentKey) string {
	return s.prefix + ":" + string(k.Kind) + ":" + k.ID
}

func parseDocumentHash(key ports.DocumentKey, fields map[string]string) (*ports.Document, error) {
	if len(fields) == 0 {
		return nil, ports.ErrDocumentNotFound
	}
	v, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt version on %s: %w", key, err)
	}
	return &ports.Document{Key: key, Version: v, Body: []byte(fields["body"])}, nil
}

func (s *RedisDocumentStore) Get(ctx context.Context, key ports.DocumentKey) (*ports.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return parseDocumentHash(key, fields)
}

func (s *RedisDocumentStore) List(ctx context.Context, kind ports.DocumentKind) ([]*ports.Document, error) {
	base := s.prefix + ":" + string(kind) + ":"
	out := make([]*ports.Document, 0)
	iter := s.client.Scan(ctx, 0, base+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := ports.DocumentKey{Kind: kind, ID: strings.TrimPrefix(iter.Val(), base)}
		doc, err := s.Get(ctx, key)
		if errors.Is(err, ports.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s documents: %w", kind, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out, nil
}

func versionOf(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	v, err := tx.HGet(ctx, key, "version").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *RedisDocumentStore) Commit(ctx context.Context, reads []ports.DocumentVersion, writes []ports.DocumentWrite) error {
	seen := make(map[string]struct{}, len(reads)+len(writes))
	keys := make([]string, 0, len(reads)+len(writes))
	for _, r := range reads {
		if rk := s.redisKey(r.Key); !has(seen, rk) {
			seen[rk] = struct{}{}
			keys = append(keys, rk)
		}
	}
	for _, w := range writes {
		if rk := s.redisKey(w.Key); !has(seen, rk) {
			seen[rk] = struct{}{}
			keys = append(keys, rk)
		}
	}

	txf := func(tx *redis.Tx) error {
		for _, w := range writes {
			current, err := versionOf(ctx, tx, s.redisKey(w.Key))
			if err != nil {
				return err
			}
			if w.CreateOnly && current != 0 {
				return ports.ErrDuplicateKey
			}
			if current != w.ExpectedVersion {
				return ports.ErrVersionConflict
			}
		}
		for _, r := range reads {
			current, err := versionOf(ctx, tx, s.redisKey(r.Key))
			if err != nil {
				return err
			}
			if current != r.Version {
				return ports.ErrVersionConflict
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				pipe.HSet(ctx, s.redisKey(w.Key), "version", w.ExpectedVersion+1, "body", w.Body)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, keys...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ports.ErrVersionConflict
	case errors.Is(err, ports.ErrVersionConflict), errors.Is(err, ports.ErrDuplicateKey):
		return err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"keys": len(keys)}).WithError(err).Error("redis: document commit failed")
	}
	return fmt.Errorf("failed to commit documents: %w", err)
}

func has(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
