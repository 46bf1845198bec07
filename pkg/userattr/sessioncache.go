package userattr

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// CacheMaxAge bounds how long a session's resolved UserAttributes
	// survive without being touched, mirroring the teacher session
	// manager's SessionMaxAge.
	CacheMaxAge = 24 * time.Hour
	// CacheGCInterval is how often the background sweep runs.
	CacheGCInterval = time.Minute
)

// ErrAttributesNotFound is returned by a CacheDriver when no entry
// exists for a session id.
var ErrAttributesNotFound = errors.New("user attributes not found")

// UserAttributes is the per-session memo UserResolver builds and the
// BundleController invalidates: the impersonation override from step 2 and the
// dotted-path lookups resolved by each user-attribute rule in step 3
// (§4.4). It is intentionally serializable (dotted-path values are
// plain JSON-ish data) so the badger driver can persist it untouched.
type UserAttributes struct {
	Override *Identity      `json:"override,omitempty"`
	Resolved map[string]any `json:"resolved,omitempty"`
}

// StableJSON renders the attributes deterministically, the comparison
// form the BundleController's _checkUserAttributes guard uses to
// detect divergence across a bundle (§4.11).
func (a *UserAttributes) StableJSON() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CacheDriver stores UserAttributes keyed by session id. A memory
// driver backs single-process deployments; a badger driver gives a
// host process a warm-startable cache across restarts.
type CacheDriver interface {
	Get(ctx context.Context, sessionID string) (*UserAttributes, error)
	Set(ctx context.Context, sessionID string, attrs *UserAttributes) error
	Delete(ctx context.Context, sessionID string) error
	Touch(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	LastUsed(ctx context.Context, sessionID string) (time.Time, error)
}

// SessionCache is the session-keyed cache of resolved UserAttributes,
// GC'd on a ticker exactly the way the teacher's SessionMgr reaps
// idle sessions.
type SessionCache struct {
	driver   CacheDriver
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSessionCache starts the background GC sweep and returns a cache
// wrapping driver.
func NewSessionCache(ctx context.Context, driver CacheDriver) *SessionCache {
	c := &SessionCache{driver: driver, stopChan: make(chan struct{})}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(CacheGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.GC()
			}
		}
	}()
	return c
}

// Close stops the GC goroutine.
func (c *SessionCache) Close() {
	close(c.stopChan)
	c.wg.Wait()
}

// Get returns the cached attributes for a session, if present.
func (c *SessionCache) Get(ctx context.Context, sessionID string) (*UserAttributes, error) {
	attrs, err := c.driver.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_ = c.driver.Touch(ctx, sessionID)
	return attrs, nil
}

// Set stores attrs for sessionID, replacing anything cached.
func (c *SessionCache) Set(ctx context.Context, sessionID string, attrs *UserAttributes) error {
	return c.driver.Set(ctx, sessionID, attrs)
}

// Invalidate drops a single session's cached attributes, used when the
// session unsubscribes (bundle.Controller.Unsubscribe).
func (c *SessionCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.driver.Delete(ctx, sessionID)
}

// InvalidateAll drops every cached entry, used by
// bundle.Controller.Update and by AppliedBundle when a bundle touches a
// user-attribute source table.
func (c *SessionCache) InvalidateAll(ctx context.Context) error {
	ids, err := c.driver.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.driver.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GC evicts every session whose attributes haven't been touched within
// CacheMaxAge.
func (c *SessionCache) GC() error {
	ctx := context.Background()
	expiredAt := time.Now().Add(-CacheMaxAge)
	ids, err := c.driver.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		used, err := c.driver.LastUsed(ctx, id)
		if err != nil {
			continue
		}
		if used.Before(expiredAt) {
			_ = c.driver.Delete(ctx, id)
		}
	}
	return nil
}

// MemoryCacheDriver is an in-process CacheDriver, the default for a
// single engine instance.
type MemoryCacheDriver struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	attrs    *UserAttributes
	lastUsed time.Time
}

// NewMemoryCacheDriver returns an empty in-memory driver.
func NewMemoryCacheDriver() *MemoryCacheDriver {
	return &MemoryCacheDriver{entries: make(map[string]*memEntry)}
}

func (d *MemoryCacheDriver) Get(_ context.Context, sessionID string) (*UserAttributes, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[sessionID]
	if !ok {
		return nil, ErrAttributesNotFound
	}
	return e.attrs, nil
}

func (d *MemoryCacheDriver) Set(_ context.Context, sessionID string, attrs *UserAttributes) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[sessionID] = &memEntry{attrs: attrs, lastUsed: time.Now()}
	return nil
}

func (d *MemoryCacheDriver) Delete(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, sessionID)
	return nil
}

func (d *MemoryCacheDriver) Touch(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[sessionID]; ok {
		e.lastUsed = time.Now()
	}
	return nil
}

func (d *MemoryCacheDriver) Sessions(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *MemoryCacheDriver) LastUsed(_ context.Context, sessionID string) (time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[sessionID]
	if !ok {
		return time.Time{}, ErrAttributesNotFound
	}
	return e.lastUsed, nil
}

// BadgerCacheDriver persists UserAttributes in an embedded badger
// store so a host process can warm-start the user-attribute cache
// across restarts instead of every session re-resolving user-attribute rules
// cold.
type BadgerCacheDriver struct {
	db *badger.DB
}

// NewBadgerCacheDriver wraps an already-open badger database.
func NewBadgerCacheDriver(db *badger.DB) *BadgerCacheDriver {
	return &BadgerCacheDriver{db: db}
}

type badgerRecord struct {
	Attrs    *UserAttributes `json:"attrs"`
	LastUsed time.Time       `json:"last_used"`
}

func attrsKey(sessionID string) []byte {
	return []byte("userattr:" + sessionID)
}

func (d *BadgerCacheDriver) Get(_ context.Context, sessionID string) (*UserAttributes, error) {
	var rec badgerRecord
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attrsKey(sessionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrAttributesNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return rec.Attrs, nil
}

func (d *BadgerCacheDriver) Set(_ context.Context, sessionID string, attrs *UserAttributes) error {
	rec := badgerRecord{Attrs: attrs, LastUsed: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(attrsKey(sessionID), data)
	})
}

func (d *BadgerCacheDriver) Delete(_ context.Context, sessionID string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(attrsKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (d *BadgerCacheDriver) Touch(_ context.Context, sessionID string) error {
	var rec badgerRecord
	err := d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(attrsKey(sessionID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.LastUsed = time.Now()
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(attrsKey(sessionID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (d *BadgerCacheDriver) Sessions(_ context.Context) ([]string, error) {
	var ids []string
	prefix := []byte("userattr:")
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(prefix):])
		}
		return nil
	})
	return ids, err
}

func (d *BadgerCacheDriver) LastUsed(_ context.Context, sessionID string) (time.Time, error) {
	var rec badgerRecord
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attrsKey(sessionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrAttributesNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastUsed, nil
}
