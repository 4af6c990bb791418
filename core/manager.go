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

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/kvstore"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/router"
)

const (
	// SnapshotBucket is the KV bucket holding the manager's durable state.
	SnapshotBucket = "core_manager_state"
	// snapshotKey is the single key inside the bucket. Wire-stable.
	snapshotKey = "state"
)

// sync event actions. Wire-stable.
const (
	actionUpdate = "update"
	actionRemove = "remove"
)

// event is the core sync event traveling the shared worker-sync subject.
type event struct {
	Action string  `json:"action"`
	Core   *Record `json:"core,omitempty"`
	CoreID int64   `json:"core_id,omitempty"`
}

// snapshot is the durable form of the manager state.
type snapshot struct {
	Cores []*Record `json:"cores"`
}

// aggregate is the memoized inbound view across every core. It is replaced
// wholesale on each mutation and read lock-free.
type aggregate struct {
	tags  []string
	byTag map[string]Inbound
}

// Config holds the settings of the core manager.
type Config struct {
	// Router delivers sync events. Required.
	Router *router.Router
	// Loader reads records from the system of record. Required.
	Loader Loader
	// Snapshots persists the manager state between restarts. Optional: nil
	// skips persistence and every start is a full reload.
	Snapshots kvstore.Store
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Router != nil, "Router is required").
		AddAssertion(c.Loader != nil, "Loader is required").
		Validate()
}

// Manager owns the worker's authoritative in-memory map of proxy-engine
// configurations and keeps it coherent with every other worker of the
// deployment.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	logger log.Logger

	cores map[int64]*Core
	agg   *atomic.Pointer[aggregate]

	initialized *atomic.Bool
}

// NewManager creates a core manager.
func NewManager(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	manager := &Manager{
		config:      config,
		logger:      log.DefaultLogger,
		cores:       make(map[int64]*Core),
		agg:         atomic.NewPointer(&aggregate{byTag: map[string]Inbound{}}),
		initialized: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(manager)
	}
	return manager, nil
}

// Initialize registers the core topic handler and warms the cache: from the
// last snapshot when one is readable, otherwise from the system of record
// followed by a fresh snapshot write. Call it after the router started and
// before the first mutation; a worker that has not subscribed yet would
// miss its own invalidation. Initialize is idempotent.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.initialized.CompareAndSwap(false, true) {
		return nil
	}

	m.config.Router.Register(router.TopicCore, m.handle)

	if err := m.restore(ctx); err != nil {
		m.initialized.Store(false)
		return err
	}
	return nil
}

// UpdateCore validates the record and commits it. With a broker the commit
// travels the invalidation path: the event is published and applied when
// the worker's own subscription delivers it back, exactly the way every
// other worker applies it. Without a broker it applies immediately and the
// snapshot is rewritten.
func (m *Manager) UpdateCore(ctx context.Context, record *Record) error {
	if !m.initialized.Load() {
		return gerrors.ErrManagerNotInitialized
	}
	// fail fast on bad input before it reaches the bus
	validated, err := Validate(record)
	if err != nil {
		return err
	}

	if m.config.Router.Enabled() {
		return m.config.Router.Publish(ctx, router.TopicCore, event{Action: actionUpdate, Core: record})
	}

	m.persist(ctx, m.apply(validated))
	return nil
}

// RemoveCore removes the configuration with the given id, through the same
// dual path as UpdateCore. The default core cannot be removed.
func (m *Manager) RemoveCore(ctx context.Context, id int64) error {
	if !m.initialized.Load() {
		return gerrors.ErrManagerNotInitialized
	}
	if id == DefaultCoreID {
		return fmt.Errorf("core: remove id=(%d): %w", id, gerrors.ErrDefaultCoreProtected)
	}

	if m.config.Router.Enabled() {
		return m.config.Router.Publish(ctx, router.TopicCore, event{Action: actionRemove, CoreID: id})
	}

	m.persist(ctx, m.discard(id))
	return nil
}

// GetCore returns the validated configuration for the given id, or the
// default configuration when the id is unknown. Callers always get some
// engine configuration to work with; the result is nil only while no
// default core exists at all.
func (m *Manager) GetCore(id int64) *Core {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if core, ok := m.cores[id]; ok {
		return core
	}
	return m.cores[DefaultCoreID]
}

// CoresCount returns the number of cached configurations.
func (m *Manager) CoresCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cores)
}

// Inbounds returns every visible inbound tag, ordered by ascending core id
// then document order.
func (m *Manager) Inbounds() []string {
	agg := m.agg.Load()
	out := make([]string, len(agg.tags))
	copy(out, agg.tags)
	return out
}

// InboundsByTag returns the visible inbounds keyed by tag. A tag carried by
// several cores resolves to the highest core id.
func (m *Manager) InboundsByTag() map[string]Inbound {
	agg := m.agg.Load()
	out := make(map[string]Inbound, len(agg.byTag))
	for tag, inbound := range agg.byTag {
		out[tag] = inbound
	}
	return out
}

// handle applies one core sync event. Anything it cannot decode or
// validate triggers a full reload from the system of record: consistency
// is repaired by reload, never left stale.
func (m *Manager) handle(ctx context.Context, data []byte) error {
	received := new(event)
	if err := json.Unmarshal(data, received); err != nil {
		m.logger.Warnf("core: undecodable sync event, reloading: %v", err)
		return m.reload(ctx)
	}

	switch received.Action {
	case actionUpdate:
		validated, err := Validate(received.Core)
		if err != nil {
			m.logger.Warnf("core: sync event rejected, reloading: %v", err)
			return m.reload(ctx)
		}
		m.persist(ctx, m.apply(validated))
		return nil
	case actionRemove:
		if received.CoreID == DefaultCoreID {
			m.logger.Warn("core: ignoring remove event for the default core")
			return nil
		}
		m.persist(ctx, m.discard(received.CoreID))
		return nil
	default:
		m.logger.Warnf("core: unknown sync action=(%s), reloading", received.Action)
		return m.reload(ctx)
	}
}

// restore warm-starts from the snapshot. A missing, unreadable, corrupt or
// invalid snapshot all degrade the same way: full reload.
func (m *Manager) restore(ctx context.Context) error {
	if m.config.Snapshots == nil {
		return m.reload(ctx)
	}

	data, err := m.config.Snapshots.Get(ctx, snapshotKey)
	if err != nil {
		if !errors.Is(err, gerrors.ErrKeyNotFound) {
			m.logger.Warnf("core: snapshot read failed, reloading: %v", err)
		}
		return m.reload(ctx)
	}

	stored := new(snapshot)
	if err := codec.DecodeSnapshot(data, stored); err != nil {
		m.logger.Warnf("core: corrupt snapshot, reloading: %v", err)
		return m.reload(ctx)
	}

	cores := make(map[int64]*Core, len(stored.Cores))
	for _, record := range stored.Cores {
		validated, err := Validate(record)
		if err != nil {
			m.logger.Warnf("core: snapshot record rejected, reloading: %v", err)
			return m.reload(ctx)
		}
		cores[validated.ID()] = validated
	}

	m.install(cores)
	m.logger.Infof("core manager warm-started with %d core(s)", len(cores))
	return nil
}

// reload rebuilds the whole cache from the system of record and rewrites
// the snapshot.
func (m *Manager) reload(ctx context.Context) error {
	records, err := m.config.Loader.ListCores(ctx)
	if err != nil {
		return fmt.Errorf("core: reload: %w", err)
	}

	cores := make(map[int64]*Core, len(records))
	for _, record := range records {
		validated, err := Validate(record)
		if err != nil {
			return fmt.Errorf("core: reload: %w", err)
		}
		cores[validated.ID()] = validated
	}

	m.persist(ctx, m.install(cores))
	m.logger.Infof("core manager loaded %d core(s) from the system of record", len(cores))
	return nil
}

// install replaces the cache wholesale.
func (m *Manager) install(cores map[int64]*Core) []*Record {
	m.mu.Lock()
	m.cores = cores
	records := m.refreshLocked()
	m.mu.Unlock()
	return records
}

// apply inserts or replaces one core.
func (m *Manager) apply(validated *Core) []*Record {
	m.mu.Lock()
	m.cores[validated.ID()] = validated
	records := m.refreshLocked()
	m.mu.Unlock()
	return records
}

// discard drops one core. Dropping an absent id is a no-op.
func (m *Manager) discard(id int64) []*Record {
	m.mu.Lock()
	delete(m.cores, id)
	records := m.refreshLocked()
	m.mu.Unlock()
	return records
}

// refreshLocked rebuilds the memoized aggregate and returns the records in
// snapshot order. Later cores win tag collisions; a tag keeps the position
// of its first appearance. Callers hold the write lock.
func (m *Manager) refreshLocked() []*Record {
	ids := make([]int64, 0, len(m.cores))
	for id := range m.cores {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	records := make([]*Record, 0, len(ids))
	tags := make([]string, 0, 16)
	byTag := make(map[string]Inbound, 16)
	for _, id := range ids {
		core := m.cores[id]
		records = append(records, core.record)
		for _, inbound := range core.inbounds {
			if _, ok := byTag[inbound.Tag]; !ok {
				tags = append(tags, inbound.Tag)
			}
			byTag[inbound.Tag] = inbound
		}
	}

	m.agg.Store(&aggregate{tags: tags, byTag: byTag})
	return records
}

// persist writes the snapshot, outside any lock. A failure is logged, not
// returned: the snapshot is a warm-start optimization and the in-memory
// state has already moved.
func (m *Manager) persist(ctx context.Context, records []*Record) {
	if m.config.Snapshots == nil {
		return
	}
	data, err := codec.EncodeSnapshot(&snapshot{Cores: records})
	if err != nil {
		m.logger.Errorf("core: encode snapshot: %v", err)
		return
	}
	if err := m.config.Snapshots.Put(ctx, snapshotKey, data); err != nil {
		m.logger.Errorf("core: persist snapshot: %v", err)
	}
}
