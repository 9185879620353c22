package ledger

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// cacheLedger implements Ledger on top of an in-memory TTL cache. Entries
// expire after the retention window so memory stays bounded under sustained
// load.
type cacheLedger struct {
	entries   *cache.Cache
	retention time.Duration
}

// NewCacheLedger creates a ledger retaining keys for the given window,
// typically a small multiple of the slot duration.
func NewCacheLedger(retention time.Duration) Ledger {
	return &cacheLedger{
		entries:   cache.New(retention, 2*retention),
		retention: retention,
	}
}

// CheckAndInsert relies on cache.Add, which takes the cache lock and fails
// if the key is already present, so check and insert happen in one atomic
// step.
func (l *cacheLedger) CheckAndInsert(key Key) bool {
	return l.entries.Add(key.String(), struct{}{}, l.retention) == nil
}
