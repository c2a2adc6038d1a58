// Package histcache caches serialized histograms, keyed by column, for the
// optimizer's "many concurrent histograms, one consulted per query thread"
// resource model (jsonhist's concurrency notes). Entries are held as
// (optionally zstd-compressed) JSON, so every Get deserializes again; what
// the cache saves is re-fetching the raw bytes through GetOrLoad's loader.
// Adapted from the teacher's page cache
// (storage/lru.go: doubly-linked list + mutex, raw bytes per entry) and
// its record lock manager (concurrency/lock.go: per-key cond-variable
// locking), generalized from page IDs to (db, table, column) cache keys
// and from raw page bytes to compressed histogram JSON.
package histcache

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/optiflex/jsonhist"
)

// Key identifies a cached histogram by the column it describes.
type Key struct {
	DB     string
	Table  string
	Column string
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s.%s", k.DB, k.Table, k.Column)
}

type entry struct {
	key        Key
	compressed []byte
	rawFlag    bool // true if compressed holds the uncompressed payload (no size gain)
	prev, next *entry
}

// populateCall dedupes concurrent loads of the same key, the way the
// teacher's recordLock dedupes concurrent writers via sync.Cond.
type populateCall struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	hist *jsonhist.Histogram
	err  error
}

// Cache is an LRU of compressed, serialized histograms keyed by column.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[Key]*entry
	head     *entry
	tail     *entry

	inflight map[Key]*populateCall

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *zap.Logger

	hits   uint64
	misses uint64
}

// New returns a cache holding at most capacity histograms. A nil logger
// falls back to zap.NewNop().
func New(capacity int, logger *zap.Logger) (*Cache, error) {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("histcache: creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("histcache: creating zstd decoder: %w", err)
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[Key]*entry, capacity),
		inflight: make(map[Key]*populateCall),
		encoder:  enc,
		decoder:  dec,
		logger:   logger,
	}, nil
}

// Close releases the cache's zstd resources.
func (c *Cache) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Get returns the cached histogram for key, deserializing and
// decompressing it fresh on every call (the cache holds bytes, not live
// objects, the same tradeoff the teacher's page cache makes).
func (c *Cache) Get(key Key, collation jsonhist.Collator) (*jsonhist.Histogram, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	c.hits++
	c.moveToFront(e)
	compressed, rawFlag := e.compressed, e.rawFlag
	c.mu.Unlock()

	payload := compressed
	if !rawFlag {
		decoded, err := c.decoder.DecodeAll(compressed, nil)
		if err != nil {
			c.logger.Warn("histcache: corrupt cache entry, evicting", zap.Stringer("key", key), zap.Error(err))
			c.Invalidate(key)
			return nil, false
		}
		payload = decoded
	}

	h, err := jsonhist.FromJSON(payload, collation)
	if err != nil {
		c.logger.Warn("histcache: failed to deserialize cached histogram", zap.Stringer("key", key), zap.Error(err))
		c.Invalidate(key)
		return nil, false
	}
	return h, true
}

// Put stores h under key, compressing its JSON form with zstd only when
// doing so is smaller — the same "compress if it helps" rule the teacher
// applies to page records.
func (c *Cache) Put(key Key, h *jsonhist.Histogram) error {
	raw, err := h.ToJSON()
	if err != nil {
		return fmt.Errorf("histcache: serializing histogram for %s: %w", key, err)
	}

	compressed := c.encoder.EncodeAll(raw, nil)
	rawFlag := len(compressed) >= len(raw)
	if rawFlag {
		compressed = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.compressed, e.rawFlag = compressed, rawFlag
		c.moveToFront(e)
		return nil
	}

	e := &entry{key: key, compressed: compressed, rawFlag: rawFlag}
	c.items[key] = e
	c.pushFront(e)
	if len(c.items) > c.capacity {
		c.evict()
	}
	return nil
}

// GetOrLoad returns the cached histogram for key, or calls load to
// deserialize it from raw bytes on a miss. Concurrent GetOrLoad calls for
// the same key block on one another's load rather than racing duplicate
// deserializations, mirroring the teacher's AcquireRecord/ReleaseRecord
// discipline generalized to a single-flight load instead of a write lock.
func (c *Cache) GetOrLoad(key Key, collation jsonhist.Collator, load func() ([]byte, error)) (*jsonhist.Histogram, error) {
	if h, ok := c.Get(key, collation); ok {
		return h, nil
	}

	c.mu.Lock()
	for {
		if pc, ok := c.inflight[key]; ok {
			c.mu.Unlock()
			return pc.wait()
		}
		if _, ok := c.items[key]; !ok {
			break
		}
		// Another load populated key between the Get above and this lock.
		c.mu.Unlock()
		if h, ok := c.Get(key, collation); ok {
			return h, nil
		}
		c.mu.Lock()
	}
	pc := &populateCall{}
	pc.cond = sync.NewCond(&pc.mu)
	c.inflight[key] = pc
	c.mu.Unlock()

	raw, err := load()
	var h *jsonhist.Histogram
	if err == nil {
		h, err = jsonhist.FromJSON(raw, collation)
	}
	if err == nil {
		if putErr := c.Put(key, h); putErr != nil {
			c.logger.Warn("histcache: failed to populate cache", zap.Stringer("key", key), zap.Error(putErr))
		}
	}

	pc.mu.Lock()
	pc.hist, pc.err, pc.done = h, err, true
	pc.cond.Broadcast()
	pc.mu.Unlock()

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return h, err
}

func (pc *populateCall) wait() (*jsonhist.Histogram, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for !pc.done {
		pc.cond.Wait()
	}
	return pc.hist, pc.err
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return
	}
	c.removeNode(e)
	delete(c.items, key)
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*entry, c.capacity)
	c.head, c.tail = nil, nil
}

// Stats reports cumulative hit/miss counters plus current size/capacity.
func (c *Cache) Stats() (hits, misses uint64, size, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items), c.capacity
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) removeNode(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.removeNode(e)
	c.pushFront(e)
}

func (c *Cache) evict() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	c.removeNode(victim)
	delete(c.items, victim.key)
	c.logger.Debug("histcache: evicted entry", zap.Stringer("key", victim.key))
}
