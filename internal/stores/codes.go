package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeRecordVersionV1 = 1

var (
	ErrCodeNotFound          = errors.New("verification code not found")
	ErrCodeExpired           = errors.New("verification code expired")
	ErrCodeMismatch          = errors.New("verification code mismatch")
	ErrVaultRedisUnavailable = errors.New("code vault redis unavailable")
)

// issueCodeLua atomically supersedes any live code for the account and
// installs the new one.
// KEYS[1] = active record key
// KEYS[2] = retention key for superseded/consumed records
// ARGV[1] = encoded record
// ARGV[2] = code TTL (ms)
// ARGV[3] = retention TTL (ms)
var issueCodeLua = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
  redis.call('SET', KEYS[2], old, 'PX', ARGV[3])
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// consumeCodeLua atomically performs GET→validate→retire on the active
// record. A digest mismatch leaves the record in place; only a match or an
// expiry removes it, so a wrong submission never invalidates the real code.
// KEYS[1] = active record key
// KEYS[2] = retention key
// ARGV[1] = provided digest (32 bytes)
// ARGV[2] = current unix timestamp (int string)
// ARGV[3] = retention TTL (ms)
//
// Record layout: version(1) issuedAt(8 big-endian) expiresAt(8 big-endian) digest(32).
var consumeCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 10, 17)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if tonumber(ARGV[2]) >= expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local storedDigest = string.sub(data, 18, 49)
if storedDigest ~= ARGV[1] then
  return {err='mismatch'}
end

redis.call('SET', KEYS[2], data, 'PX', ARGV[3])
redis.call('DEL', KEYS[1])
return data
`)

// CodeRecord is the decoded form of a stored verification code. The code
// itself is kept only as a SHA-256 digest.
type CodeRecord struct {
	UserID    string
	Digest    [32]byte
	IssuedAt  int64
	ExpiresAt int64
}

// CodeVault manages per-account one-time verification codes in Redis.
type CodeVault struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewCodeVault creates a vault using the given key prefix ("vc" when empty).
// Retention bounds how long retired records stay queryable; zero or negative
// falls back to one hour.
func NewCodeVault(redisClient redis.UniversalClient, prefix string, retention time.Duration) *CodeVault {
	if prefix == "" {
		prefix = "vc"
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &CodeVault{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (v *CodeVault) activeKey(userID string) string {
	return v.prefix + ":a:" + userID
}

func (v *CodeVault) retiredKey(userID string) string {
	return v.prefix + ":u:" + userID
}

// Issue installs a fresh code record for the account, superseding any code
// still live for it. Supersession and install happen in one script.
func (v *CodeVault) Issue(ctx context.Context, userID string, digest [32]byte, now time.Time, ttl time.Duration) error {
	record := &CodeRecord{
		UserID:    userID,
		Digest:    digest,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return err
	}

	err = issueCodeLua.Run(ctx, v.redis,
		[]string{v.activeKey(userID), v.retiredKey(userID)},
		string(encoded),
		ttl.Milliseconds(),
		v.retention.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVaultRedisUnavailable, err)
	}

	return nil
}

// Consume validates the provided digest against the account's live code and
// retires the record on match. Exactly one of two concurrent submissions of
// the same valid code can succeed; the loser observes ErrCodeNotFound.
func (v *CodeVault) Consume(ctx context.Context, userID string, providedDigest [32]byte) (*CodeRecord, error) {
	result, err := consumeCodeLua.Run(ctx, v.redis,
		[]string{v.activeKey(userID), v.retiredKey(userID)},
		string(providedDigest[:]),
		time.Now().Unix(),
		v.retention.Milliseconds(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrCodeNotFound
		case "expired":
			return nil, ErrCodeExpired
		case "mismatch":
			return nil, ErrCodeMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrVaultRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrVaultRedisUnavailable)
	}

	record, decErr := decodeCodeRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultRedisUnavailable, decErr)
	}
	record.UserID = userID

	// Lua's string compare is not constant-time; recheck here.
	if subtle.ConstantTimeCompare(record.Digest[:], providedDigest[:]) != 1 {
		return nil, ErrCodeMismatch
	}

	return record, nil
}

func encodeCodeRecord(record *CodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.Digest[:])

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	record := &CodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.Digest[:]); err != nil {
		return nil, err
	}

	return record, nil
}
