package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertLedger remembers which SLA alerts were already sent.
type AlertLedger interface {
	// MarkSent records the key and reports true only the first time within ttl.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisAlertLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisAlertLedger uses SETNX with expiry so alerts survive restarts.
func NewRedisAlertLedger(client *redis.Client) AlertLedger {
	return &redisAlertLedger{client: client, prefix: "helpdesk:sla-alert:"}
}

func (l *redisAlertLedger) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

type memoryAlertLedger struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryAlertLedger returns a process-local ledger.
func NewMemoryAlertLedger(now func() time.Time) AlertLedger {
	if now == nil {
		now = time.Now
	}
	return &memoryAlertLedger{now: now, seen: make(map[string]time.Time)}
}

func (l *memoryAlertLedger) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if expires, ok := l.seen[key]; ok && (ttl <= 0 || now.Before(expires)) {
		return false, nil
	}
	l.seen[key] = now.Add(ttl)
	return true, nil
}
