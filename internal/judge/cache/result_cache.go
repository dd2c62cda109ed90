// Package cache stores finished judge results keyed by request content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	resultKeyPrefix  = "judge:result:"
	defaultResultTTL = 10 * time.Minute
)

// ResultCache keeps zstd-compressed JSON results in a key-value cache.
// Time limit verdicts depend on host load and are never stored.
type ResultCache struct {
	cache cache.Cache
	ttl   time.Duration
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewResultCache creates a result cache on top of c.
func NewResultCache(c cache.Cache, ttl time.Duration) (*ResultCache, error) {
	if c == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("cache is required")
	}
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "create zstd encoder failed")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "create zstd decoder failed")
	}
	return &ResultCache{cache: c, ttl: ttl, enc: enc, dec: dec}, nil
}

// Get returns the cached result for req. The bool is false on a miss. Ad hoc
// runs always miss.
func (r *ResultCache) Get(ctx context.Context, req sandbox.ExecutionRequest) (result.JudgeResult, bool, error) {
	if req.AdHoc() {
		return result.JudgeResult{}, false, nil
	}
	key, err := ResultKey(req)
	if err != nil {
		return result.JudgeResult{}, false, err
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		return result.JudgeResult{}, false, appErr.Wrapf(err, appErr.CacheError, "get cached result failed")
	}
	if raw == "" {
		return result.JudgeResult{}, false, nil
	}
	plain, err := r.dec.DecodeAll([]byte(raw), nil)
	if err != nil {
		return result.JudgeResult{}, false, appErr.Wrapf(err, appErr.CacheError, "decompress cached result failed")
	}
	var res result.JudgeResult
	if err := json.Unmarshal(plain, &res); err != nil {
		return result.JudgeResult{}, false, appErr.Wrapf(err, appErr.CacheError, "decode cached result failed")
	}
	return res, true, nil
}

// Set stores res for req unless res is not cacheable. Ad hoc output is never
// stored since nothing checks it for determinism.
func (r *ResultCache) Set(ctx context.Context, req sandbox.ExecutionRequest, res result.JudgeResult) error {
	if !Cacheable(res) || req.AdHoc() {
		return nil
	}
	key, err := ResultKey(req)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(res)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "encode result failed")
	}
	packed := r.enc.EncodeAll(plain, nil)
	if err := r.cache.Set(ctx, key, packed, cache.JitterTTL(r.ttl)); err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "store result failed")
	}
	return nil
}

// Cacheable reports whether a result is stable enough to reuse.
func Cacheable(res result.JudgeResult) bool {
	return res.Status != "" && res.Status != result.StatusTimeLimit
}

type keyMaterial struct {
	Language    string             `json:"l"`
	Code        string             `json:"c"`
	Tests       []sandbox.TestCase `json:"t,omitempty"`
	Input       *string            `json:"i,omitempty"`
	TimeLimitMs int64              `json:"tl"`
	Comparator  string             `json:"cmp"`
}

// ResultKey derives the cache key from every field that affects the verdict.
// The language is matched case-insensitively; callers resolve aliases first.
func ResultKey(req sandbox.ExecutionRequest) (string, error) {
	req = req.WithDefaults()
	comparator := req.Comparator
	if comparator == "" {
		comparator = "exact"
	}
	data, err := json.Marshal(keyMaterial{
		Language:    strings.ToLower(strings.TrimSpace(req.Language)),
		Code:        req.Code,
		Tests:       req.TestCases,
		Input:       req.Input,
		TimeLimitMs: req.TimeLimitMs,
		Comparator:  comparator,
	})
	if err != nil {
		return "", appErr.Wrapf(err, appErr.CacheError, "build cache key failed")
	}
	sum := sha256.Sum256(data)
	return resultKeyPrefix + hex.EncodeToString(sum[:]), nil
}
