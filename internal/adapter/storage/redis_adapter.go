package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

const (
	totalsKey          = "sync:totals"
	recentKey          = "sync:recent"
	defaultJournalSize = 100
)

// RedisAdapter implements port.SyncJournal.
type RedisAdapter struct {
	client *redis.Client
	prefix string
	size   int64
}

// NewRedisAdapter keeps the last size summaries. prefix namespaces the keys.
func NewRedisAdapter(client *redis.Client, prefix string, size int) *RedisAdapter {
	if size <= 0 {
		size = defaultJournalSize
	}
	return &RedisAdapter{client: client, prefix: prefix, size: int64(size)}
}

func (r *RedisAdapter) key(name string) string {
	return r.prefix + name
}

func (r *RedisAdapter) Record(ctx context.Context, summary domain.SyncSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for table, n := range summary.Processed {
			if n == 0 {
				continue
			}
			pipe.HIncrBy(ctx, r.key(totalsKey), table, int64(n))
		}
		pipe.LPush(ctx, r.key(recentKey), data)
		pipe.LTrim(ctx, r.key(recentKey), 0, r.size-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	return nil
}

// Totals returns a count for every sync table, zero when never synced.
func (r *RedisAdapter) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.key(totalsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}

	totals := make(map[string]int64, len(domain.SyncTargets))
	for _, table := range domain.TableNames() {
		totals[table] = 0
	}
	for table, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse total of %s: %w", table, err)
		}
		totals[table] = n
	}
	return totals, nil
}

func (r *RedisAdapter) Recent(ctx context.Context, limit int) ([]domain.SyncSummary, error) {
	if limit <= 0 {
		return []domain.SyncSummary{}, nil
	}

	raw, err := r.client.LRange(ctx, r.key(recentKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent: %w", err)
	}

	out := make([]domain.SyncSummary, 0, len(raw))
	for _, item := range raw {
		var s domain.SyncSummary
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
