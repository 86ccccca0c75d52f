// Package dedupe folds identical pending import submissions into one job.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 1024

// Deduper binds submission fingerprints to the job handling them.
type Deduper interface {
	// Claim atomically binds fingerprint to jobID unless it is already bound.
	// It returns the owning job id and whether that job existed before.
	Claim(ctx context.Context, fingerprint, jobID string) (owner string, existed bool)

	// Release forgets a fingerprint, e.g. when its job finished or could not
	// be enqueued, so the same file can be submitted again.
	Release(ctx context.Context, fingerprint string)

	Size() int64
}

// Fingerprint identifies a submission by actor and file content.
func Fingerprint(actor string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(actor))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// inMemoryDeduper keeps at most maxSize bindings and evicts the least
// recently used one when full.
type inMemoryDeduper struct {
	maxSize int
	cache   *lru.Cache[string, string]
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	cache, err := lru.New[string, string](d.maxSize)
	if err != nil {
		// only reachable with a non-positive size, which options prevent
		panic(err)
	}
	d.cache = cache
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, fingerprint, jobID string) (string, bool) {
	prev, ok, _ := d.cache.PeekOrAdd(fingerprint, jobID)
	if ok {
		return prev, true
	}
	return jobID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, fingerprint string) {
	d.cache.Remove(fingerprint)
}

func (d *inMemoryDeduper) Size() int64 {
	return int64(d.cache.Len())
}
