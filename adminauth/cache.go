// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package adminauth keeps every worker's view of the admin authentication
// records coherent. It follows the same invalidation pattern as the core
// cache but at per-record granularity: each admin persists under its own
// KV key and an index key lists the live usernames, so a full refresh can
// prune the keys of admins deleted while a worker was down.
package adminauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/ticker"
	"github.com/tochemey/gofleet/internal/types"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/kvstore"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/router"
)

// sync event actions. Wire-stable.
const (
	actionUpdate = "update"
	actionRemove = "remove"
)

// event is the admin sync event traveling the shared worker-sync subject.
type event struct {
	Action   string  `json:"action"`
	Admin    *Record `json:"admin,omitempty"`
	Username string  `json:"username,omitempty"`
}

// Config holds the settings of the admin auth cache.
type Config struct {
	// Router delivers sync events. Required.
	Router *router.Router
	// Loader reads records from the system of record. Required.
	Loader Loader
	// State persists the records between restarts. Optional: nil skips
	// persistence and every start is a full refresh.
	State kvstore.Store
	// RefreshInterval runs a periodic full refresh when greater than zero.
	// Optional: zero disables the loop.
	RefreshInterval time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Router != nil, "Router is required").
		AddAssertion(c.Loader != nil, "Loader is required").
		AddAssertion(c.RefreshInterval >= 0, "RefreshInterval is invalid").
		Validate()
}

// Cache owns the worker's in-memory admin auth records and keeps them
// coherent with every other worker of the deployment.
type Cache struct {
	mu     sync.RWMutex
	config *Config
	logger log.Logger

	records map[string]*Record

	initialized *atomic.Bool
	refresher   *ticker.Ticker
	stopSignal  chan types.Unit
	done        chan types.Unit
}

// NewCache creates an admin auth cache.
func NewCache(config *Config, opts ...Option) (*Cache, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cache := &Cache{
		config:      config,
		logger:      log.DefaultLogger,
		records:     make(map[string]*Record),
		initialized: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(cache)
	}
	return cache, nil
}

// Initialize registers the admin topic handler and warms the cache: from
// the persisted records when the index is readable, otherwise from the
// system of record. When a refresh interval was configured the periodic
// refresh loop starts here. Call it after the router started and before
// the first mutation. Initialize is idempotent.
func (c *Cache) Initialize(ctx context.Context) error {
	if !c.initialized.CompareAndSwap(false, true) {
		return nil
	}

	c.config.Router.Register(router.TopicAdmin, c.handle)

	if err := c.restore(ctx); err != nil {
		c.initialized.Store(false)
		return err
	}

	if c.config.RefreshInterval > 0 {
		c.refresher = ticker.New(c.config.RefreshInterval)
		c.stopSignal = make(chan types.Unit, 1)
		c.done = make(chan types.Unit, 1)
		c.refresher.Start()
		go c.refreshLoop()
	}
	return nil
}

// Close stops the periodic refresh loop. Close is idempotent and safe on a
// cache that never initialized.
func (c *Cache) Close() error {
	if !c.initialized.CompareAndSwap(true, false) {
		return nil
	}
	if c.refresher != nil {
		c.refresher.Stop()
		close(c.stopSignal)
		<-c.done
		c.refresher = nil
	}
	return nil
}

// Get returns a copy of the cached record for the given username. Unlike
// the core cache there is no fallback: an unknown admin is a plain miss.
func (c *Cache) Get(username string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[username]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// Count returns the number of cached records.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Usernames returns the cached usernames in lexicographic order.
func (c *Cache) Usernames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usernamesLocked()
}

// Update validates the record and commits it. With a broker the commit
// travels the invalidation path and applies when the worker's own
// subscription delivers it back; without a broker it applies immediately.
func (c *Cache) Update(ctx context.Context, record *Record) error {
	if !c.initialized.Load() {
		return gerrors.ErrManagerNotInitialized
	}
	// fail fast on bad input before it reaches the bus
	if err := record.Validate(); err != nil {
		return err
	}

	if c.config.Router.Enabled() {
		return c.config.Router.Publish(ctx, router.TopicAdmin, event{Action: actionUpdate, Admin: record})
	}

	c.apply(ctx, record)
	return nil
}

// Remove removes the record of the given username, through the same dual
// path as Update. Removing an unknown username is a no-op.
func (c *Cache) Remove(ctx context.Context, username string) error {
	if !c.initialized.Load() {
		return gerrors.ErrManagerNotInitialized
	}

	if c.config.Router.Enabled() {
		return c.config.Router.Publish(ctx, router.TopicAdmin, event{Action: actionRemove, Username: username})
	}

	c.discard(ctx, username)
	return nil
}

// Refresh rebuilds the whole cache from the system of record, rewrites
// every persisted record and prunes the keys of admins that no longer
// exist. It also runs on every tick when a refresh interval was
// configured.
func (c *Cache) Refresh(ctx context.Context) error {
	records, err := c.config.Loader.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("adminauth: refresh: %w", err)
	}

	fresh := make(map[string]*Record, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("adminauth: refresh: %w", err)
		}
		fresh[record.Username] = record
	}

	c.mu.Lock()
	c.records = fresh
	usernames := c.usernamesLocked()
	c.mu.Unlock()

	c.prune(ctx, goset.NewSet(usernames...))
	for _, record := range fresh {
		c.persistRecord(ctx, record)
	}
	c.persistIndex(ctx, usernames)

	c.logger.Infof("admin auth cache loaded %d record(s) from the system of record", len(fresh))
	return nil
}

// handle applies one admin sync event. Anything it cannot decode or
// validate triggers a full refresh: consistency is repaired by reload,
// never left stale.
func (c *Cache) handle(ctx context.Context, data []byte) error {
	received := new(event)
	if err := json.Unmarshal(data, received); err != nil {
		c.logger.Warnf("adminauth: undecodable sync event, refreshing: %v", err)
		return c.Refresh(ctx)
	}

	switch received.Action {
	case actionUpdate:
		if err := received.Admin.Validate(); err != nil {
			c.logger.Warnf("adminauth: sync event rejected, refreshing: %v", err)
			return c.Refresh(ctx)
		}
		c.apply(ctx, received.Admin)
		return nil
	case actionRemove:
		if received.Username == "" {
			c.logger.Warn("adminauth: ignoring remove event without a username")
			return nil
		}
		c.discard(ctx, received.Username)
		return nil
	default:
		c.logger.Warnf("adminauth: unknown sync action=(%s), refreshing", received.Action)
		return c.Refresh(ctx)
	}
}

// restore warm-starts from the persisted records. A missing, unreadable,
// corrupt or incomplete state degrades the same way: full refresh.
func (c *Cache) restore(ctx context.Context) error {
	if c.config.State == nil {
		return c.Refresh(ctx)
	}

	data, err := c.config.State.Get(ctx, indexKey)
	if err != nil {
		if !errors.Is(err, gerrors.ErrKeyNotFound) {
			c.logger.Warnf("adminauth: index read failed, refreshing: %v", err)
		}
		return c.Refresh(ctx)
	}

	var usernames []string
	if err := json.Unmarshal(data, &usernames); err != nil {
		c.logger.Warnf("adminauth: corrupt index, refreshing: %v", err)
		return c.Refresh(ctx)
	}

	records := make(map[string]*Record, len(usernames))
	for _, username := range usernames {
		raw, err := c.config.State.Get(ctx, recordKey(username))
		if err != nil {
			c.logger.Warnf("adminauth: read of username=(%s) failed, refreshing: %v", username, err)
			return c.Refresh(ctx)
		}
		record := new(Record)
		if err := json.Unmarshal(raw, record); err != nil {
			c.logger.Warnf("adminauth: corrupt record for username=(%s), refreshing: %v", username, err)
			return c.Refresh(ctx)
		}
		if err := record.Validate(); err != nil {
			c.logger.Warnf("adminauth: invalid record for username=(%s), refreshing: %v", username, err)
			return c.Refresh(ctx)
		}
		records[record.Username] = record
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	c.logger.Infof("admin auth cache warm-started with %d record(s)", len(records))
	return nil
}

// refreshLoop drives the periodic full refresh.
func (c *Cache) refreshLoop() {
	ctx := context.Background()
	defer close(c.done)
	for {
		select {
		case <-c.refresher.Ticks:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Errorf("adminauth: periodic refresh: %v", err)
			}
		case <-c.stopSignal:
			return
		}
	}
}

// apply inserts or replaces one record and persists it.
func (c *Cache) apply(ctx context.Context, record *Record) {
	c.mu.Lock()
	c.records[record.Username] = record
	usernames := c.usernamesLocked()
	c.mu.Unlock()

	c.persistRecord(ctx, record)
	c.persistIndex(ctx, usernames)
}

// discard drops one record and its persisted key. Dropping an absent
// username is a no-op.
func (c *Cache) discard(ctx context.Context, username string) {
	c.mu.Lock()
	delete(c.records, username)
	usernames := c.usernamesLocked()
	c.mu.Unlock()

	if c.config.State != nil {
		if err := c.config.State.Delete(ctx, recordKey(username)); err != nil {
			c.logger.Errorf("adminauth: delete key=(%s): %v", recordKey(username), err)
		}
	}
	c.persistIndex(ctx, usernames)
}

// usernamesLocked returns the cached usernames in lexicographic order.
// Callers hold at least the read lock.
func (c *Cache) usernamesLocked() []string {
	out := make([]string, 0, len(c.records))
	for username := range c.records {
		out = append(out, username)
	}
	slices.Sort(out)
	return out
}

// prune removes the persisted keys of admins that disappeared from the
// system of record, detected by diffing the stored index against the live
// usernames.
func (c *Cache) prune(ctx context.Context, live goset.Set[string]) {
	if c.config.State == nil {
		return
	}

	data, err := c.config.State.Get(ctx, indexKey)
	if err != nil {
		if !errors.Is(err, gerrors.ErrKeyNotFound) {
			c.logger.Warnf("adminauth: index read failed, skipping prune: %v", err)
		}
		return
	}

	var stored []string
	if err := json.Unmarshal(data, &stored); err != nil {
		c.logger.Warnf("adminauth: corrupt index, skipping prune: %v", err)
		return
	}

	stale := goset.NewSet(stored...).Difference(live)
	for _, username := range stale.ToSlice() {
		if err := c.config.State.Delete(ctx, recordKey(username)); err != nil {
			c.logger.Errorf("adminauth: prune key=(%s): %v", recordKey(username), err)
		}
	}
}

// persistRecord writes one record key, outside any lock. A failure is
// logged, not returned: the KV copy is a warm-start optimization and the
// in-memory state has already moved.
func (c *Cache) persistRecord(ctx context.Context, record *Record) {
	if c.config.State == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Errorf("adminauth: encode record=(%s): %v", record.Username, err)
		return
	}
	if err := c.config.State.Put(ctx, recordKey(record.Username), data); err != nil {
		c.logger.Errorf("adminauth: persist record=(%s): %v", record.Username, err)
	}
}

// persistIndex rewrites the index key, outside any lock.
func (c *Cache) persistIndex(ctx context.Context, usernames []string) {
	if c.config.State == nil {
		return
	}
	data, err := json.Marshal(usernames)
	if err != nil {
		c.logger.Errorf("adminauth: encode index: %v", err)
		return
	}
	if err := c.config.State.Put(ctx, indexKey, data); err != nil {
		c.logger.Errorf("adminauth: persist index: %v", err)
	}
}
