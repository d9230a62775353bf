package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// maxListLimit caps list queries that were called without a limit.
const maxListLimit = 1000

// Headers are hashes. Sorted sets scored by creation time in microseconds
// index them per owner, per status, and per sender+currency for completed
// outbound amounts (member "<id>|<amount>").

// appendHeader claims the idempotency key and writes the header with its indexes.
// KEYS: header, idem, sender history, recipient history, status index, outbound.
// ARGV: id, idempotency key or "", score, outbound member or "", field/value pairs...
var appendHeader = goredis.NewScript(`
if ARGV[2] ~= '' then
	if redis.call('EXISTS', KEYS[2]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[2], ARGV[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 5))
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[5], ARGV[3], ARGV[1])
if ARGV[4] ~= '' then
	redis.call('ZADD', KEYS[6], ARGV[3], ARGV[4])
end
return 1
`)

// resolvePending moves a pending header to a terminal status.
// KEYS: header, pending index, target status index, outbound.
// ARGV: id, status, completed_at, failure reason or "".
// Returns -1 when the header is missing, 0 when it is not pending.
var resolvePending = goredis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'status')
if not s then
	return -1
end
if s ~= 'pending' then
	return 0
end
local score = redis.call('HGET', KEYS[1], 'created_us')
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'completed_at', ARGV[3])
if ARGV[4] ~= '' then
	redis.call('HSET', KEYS[1], 'failure_reason', ARGV[4])
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], score, ARGV[1])
if ARGV[2] == 'completed' then
	local amount = redis.call('HGET', KEYS[1], 'amount')
	redis.call('ZADD', KEYS[4], score, ARGV[1] .. '|' .. amount)
end
return 1
`)

// LedgerRepo implements ports.LedgerStore on Redis.
type LedgerRepo struct {
	client *goredis.Client
	keys   keyspace
}

// NewLedgerRepo creates a Redis-backed ledger store.
func NewLedgerRepo(client *goredis.Client, prefix string) *LedgerRepo {
	return &LedgerRepo{client: client, keys: keyspace(prefix)}
}

// AppendHeader writes a header. A taken idempotency key yields
// domain.ErrDuplicateIdempotencyKey and nothing is written.
func (r *LedgerRepo) AppendHeader(ctx context.Context, t *domain.TransferRecord) error {
	id := t.ID.String()
	idem := ""
	if t.IdempotencyKey != nil {
		idem = *t.IdempotencyKey
	}
	outbound := ""
	if t.Status == domain.TransferStatusCompleted {
		outbound = id + "|" + t.Amount.String()
	}

	keys := []string{
		r.keys.transfer(id),
		r.keys.idem(idem),
		r.keys.history(t.SenderID),
		r.keys.history(t.RecipientID),
		r.keys.byStatus(string(t.Status)),
		r.keys.outbound(t.SenderID, t.Currency),
	}
	args := append([]any{id, idem, score(t.CreatedAt), outbound}, encodeHeader(t)...)

	ok, err := appendHeader.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	if ok == 0 {
		return domain.ErrDuplicateIdempotencyKey
	}
	return nil
}

// AppendEntries pushes the debit and credit postings in one command.
func (r *LedgerRepo) AppendEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error {
	d, err := json.Marshal(debit)
	if err != nil {
		return fmt.Errorf("encode debit entry: %w", err)
	}
	c, err := json.Marshal(credit)
	if err != nil {
		return fmt.Errorf("encode credit entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.keys.entries(debit.TransferID.String()), d, c).Err(); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// AppendAdjustment pushes a single adjustment posting.
func (r *LedgerRepo) AppendAdjustment(ctx context.Context, e *domain.LedgerEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode adjustment entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.keys.entries(e.TransferID.String()), b).Err(); err != nil {
		return fmt.Errorf("insert adjustment entry: %w", err)
	}
	return nil
}

// MarkCompleted moves a pending header to completed.
func (r *LedgerRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.resolve(ctx, id, domain.TransferStatusCompleted, "")
}

// MarkFailed moves a pending header to failed with a reason.
func (r *LedgerRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.resolve(ctx, id, domain.TransferStatusFailed, reason)
}

func (r *LedgerRepo) resolve(ctx context.Context, id uuid.UUID, to domain.TransferStatus, reason string) error {
	key := r.keys.transfer(id.String())
	vals, err := r.client.HMGet(ctx, key, "sender_id", "currency").Result()
	if err != nil {
		return fmt.Errorf("read transfer: %w", err)
	}
	sender, _ := vals[0].(string)
	currency, _ := vals[1].(string)
	if sender == "" {
		return domain.ErrTransferNotFound
	}

	keys := []string{
		key,
		r.keys.byStatus(string(domain.TransferStatusPending)),
		r.keys.byStatus(string(to)),
		r.keys.outbound(sender, currency),
	}
	res, err := resolvePending.Run(ctx, r.client, keys,
		id.String(), string(to), time.Now().UTC().Format(time.RFC3339Nano), reason,
	).Int64()
	if err != nil {
		return fmt.Errorf("mark transfer %s: %w", to, err)
	}
	switch res {
	case -1:
		return domain.ErrTransferNotFound
	case 0:
		status, _ := r.client.HGet(ctx, key, "status").Result()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, status, to)
	}
	return nil
}

// HeaderFor fetches a header by id. Returns nil, nil if absent.
func (r *LedgerRepo) HeaderFor(ctx context.Context, id uuid.UUID) (*domain.TransferRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.transfer(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeHeader(fields)
}

// HeaderByIdempotencyKey fetches a header by its client key. Returns nil, nil if absent.
func (r *LedgerRepo) HeaderByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	raw, err := r.client.Get(ctx, r.keys.idem(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by idempotency key: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transfer id %q: %w", raw, err)
	}
	return r.HeaderFor(ctx, id)
}

// EntriesFor lists the postings of a transfer or adjustment in write order.
func (r *LedgerRepo) EntriesFor(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	raws, err := r.client.LRange(ctx, r.keys.entries(transferID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	entries := make([]domain.LedgerEntry, 0, len(raws))
	for _, raw := range raws {
		var e domain.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// HistoryFor lists transfers sent or received by ownerID, newest first.
func (r *LedgerRepo) HistoryFor(ctx context.Context, ownerID string, limit int) ([]domain.TransferRecord, error) {
	ids, err := r.client.ZRevRange(ctx, r.keys.history(ownerID), 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return r.headers(ctx, ids)
}

// OutboundTotalSince sums completed transfers sent by senderID in currency since the cutoff.
func (r *LedgerRepo) OutboundTotalSince(ctx context.Context, senderID, currency string, since time.Time) (decimal.Decimal, error) {
	members, err := r.client.ZRangeByScore(ctx, r.keys.outbound(senderID, currency), &goredis.ZRangeBy{
		Min: score(since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum outbound transfers: %w", err)
	}

	total := decimal.Zero
	for _, m := range members {
		_, amt, ok := strings.Cut(m, "|")
		if !ok {
			return decimal.Zero, fmt.Errorf("malformed outbound member %q", m)
		}
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse outbound amount %q: %w", amt, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// ListCompletedSince lists completed transfers created at or after since, oldest first.
func (r *LedgerRepo) ListCompletedSince(ctx context.Context, since time.Time, limit int) ([]domain.TransferRecord, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.keys.byStatus(string(domain.TransferStatusCompleted)), &goredis.ZRangeBy{
		Min:   score(since),
		Max:   "+inf",
		Count: int64(clampLimit(limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list completed transfers: %w", err)
	}
	return r.headers(ctx, ids)
}

// ListPendingBefore lists headers still pending that were created before cutoff.
func (r *LedgerRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.keys.byStatus(string(domain.TransferStatusPending)), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + score(cutoff),
		Count: int64(clampLimit(limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	return r.headers(ctx, ids)
}

// headers loads the given ids in one pipeline, preserving order.
func (r *LedgerRepo) headers(ctx context.Context, ids []string) ([]domain.TransferRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.keys.transfer(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load transfers: %w", err)
	}

	out := make([]domain.TransferRecord, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeHeader(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func encodeHeader(t *domain.TransferRecord) []any {
	fields := []any{
		"id", t.ID.String(),
		"currency", t.Currency,
		"amount", t.Amount.String(),
		"sender_id", t.SenderID,
		"recipient_id", t.RecipientID,
		"status", string(t.Status),
		"created_at", t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"created_us", score(t.CreatedAt),
	}
	if t.IdempotencyKey != nil {
		fields = append(fields, "idempotency_key", *t.IdempotencyKey)
	}
	if t.FailureReason != nil {
		fields = append(fields, "failure_reason", *t.FailureReason)
	}
	if t.Note != nil {
		fields = append(fields, "note", *t.Note)
	}
	if t.CompletedAt != nil {
		fields = append(fields, "completed_at", t.CompletedAt.UTC().Format(time.RFC3339Nano))
	}
	return fields
}

func decodeHeader(f map[string]string) (*domain.TransferRecord, error) {
	id, err := uuid.Parse(f["id"])
	if err != nil {
		return nil, fmt.Errorf("parse transfer id %q: %w", f["id"], err)
	}
	amount, err := decimal.NewFromString(f["amount"])
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", f["amount"], err)
	}
	created, err := time.Parse(time.RFC3339Nano, f["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	t := &domain.TransferRecord{
		ID:          id,
		Currency:    f["currency"],
		Amount:      amount,
		SenderID:    f["sender_id"],
		RecipientID: f["recipient_id"],
		Status:      domain.TransferStatus(f["status"]),
		CreatedAt:   created,
	}
	if v, ok := f["idempotency_key"]; ok {
		t.IdempotencyKey = &v
	}
	if v, ok := f["failure_reason"]; ok {
		t.FailureReason = &v
	}
	if v, ok := f["note"]; ok {
		t.Note = &v
	}
	if v, ok := f["completed_at"]; ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		t.CompletedAt = &ts
	}
	return t, nil
}

// score encodes a timestamp as a sorted set score. Microseconds stay exact in a float64.
func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
