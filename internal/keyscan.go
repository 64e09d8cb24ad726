package internal

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// CountKeys counts keys matching pattern with SCAN. It stops once limit keys
// have been seen (limit <= 0 scans everything) and reports the early stop as
// truncated. Cluster clients are scanned master by master. SCAN may repeat a
// key while the keyspace is resizing, so the count is approximate.
func CountKeys(ctx context.Context, rdb redis.UniversalClient, pattern string, limit int) (int, bool, error) {
	cluster, ok := rdb.(*redis.ClusterClient)
	if !ok {
		return scanCount(ctx, rdb, pattern, limit)
	}

	var (
		mu        sync.Mutex
		total     int
		truncated bool
	)
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		n, t, err := scanCount(ctx, node, pattern, limit)
		mu.Lock()
		total += n
		truncated = truncated || t
		mu.Unlock()
		return err
	})
	if limit > 0 && total > limit {
		total, truncated = limit, true
	}
	return total, truncated, err
}

func scanCount(ctx context.Context, c redis.Cmdable, pattern string, limit int) (int, bool, error) {
	var (
		cursor uint64
		n      int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return n, false, err
		}
		n += len(keys)
		if limit > 0 && n >= limit {
			return limit, next != 0 || n > limit, nil
		}
		if next == 0 {
			return n, false, nil
		}
		cursor = next
	}
}
