package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// appendAudit writes an event once and indexes it by time.
// KEYS: event, index. ARGV: json, score, id.
var appendAudit = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// auditPage is how many ids List pulls per round trip while filtering.
const auditPage = 200

// AuditRepo implements ports.AuditStore on Redis.
type AuditRepo struct {
	client *goredis.Client
	keys   keyspace
}

// NewAuditRepo creates a Redis-backed audit store.
func NewAuditRepo(client *goredis.Client, prefix string) *AuditRepo {
	return &AuditRepo{client: client, keys: keyspace(prefix)}
}

// Append stores a sealed event. Existing events are never overwritten.
func (r *AuditRepo) Append(ctx context.Context, ev *domain.AuditEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	id := ev.ID.String()
	ok, err := appendAudit.Run(ctx, r.client,
		[]string{r.keys.auditEvent(id), r.keys.auditIndex()},
		b, score(ev.CreatedAt), id,
	).Int64()
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("audit event %s already exists", id)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	limit := clampLimit(f.Limit)
	rng := &goredis.ZRangeBy{Min: "-inf", Max: "+inf", Count: auditPage}
	if f.From != nil {
		rng.Min = score(*f.From)
	}
	if f.To != nil {
		rng.Max = score(*f.To)
	}

	var out []domain.AuditEvent
	for {
		ids, err := r.client.ZRevRangeByScore(ctx, r.keys.auditIndex(), rng).Result()
		if err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		for _, id := range ids {
			ev, err := r.get(ctx, id)
			if err != nil {
				return nil, err
			}
			if ev == nil || !f.Matches(ev) {
				continue
			}
			out = append(out, *ev)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(ids) < auditPage {
			return out, nil
		}
		rng.Offset += auditPage
	}
}

func (r *AuditRepo) get(ctx context.Context, id string) (*domain.AuditEvent, error) {
	raw, err := r.client.Get(ctx, r.keys.auditEvent(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	var ev domain.AuditEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode audit event: %w", err)
	}
	return &ev, nil
}
