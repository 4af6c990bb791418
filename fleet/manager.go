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

// Package fleet holds the panel side of the node fleet: one live handle
// per proxy node, swapped atomically on record changes, probed for health
// and fanned out to for user provisioning. Handle teardown always runs
// detached on a supervised pool so a slow node shutdown never blocks
// unrelated fleet operations.
package fleet

import (
	"context"
	"fmt"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/commands"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/syncmap"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/internal/workerpool"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/metric"
	"github.com/tochemey/gofleet/rpc"
)

// Config holds the settings of the fleet manager.
type Config struct {
	// Client is the worker's broker client. Required.
	Client *broker.Client
	// RequestTimeout bounds every node request issued through the
	// manager's handles, teardown included. Optional.
	RequestTimeout time.Duration
	// PoolCapacity bounds the detached teardown and fan-out tasks running
	// concurrently. Optional.
	PoolCapacity int
}

// Sanitize fills in the default settings.
func (c *Config) Sanitize() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = rpc.DefaultRequestTimeout
	}
	if c.PoolCapacity <= 0 {
		c.PoolCapacity = workerpool.DefaultCapacity
	}
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Client != nil, "Client is required").
		Validate()
}

// Manager mediates all access to the fleet of live node handles.
type Manager struct {
	config *Config
	logger log.Logger

	nodes *syncmap.SyncMap[int64, *Node]
	pool  *workerpool.WorkerPool

	meter        otelmetric.Meter
	registration otelmetric.Registration
}

// NewManager creates a fleet manager.
func NewManager(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = &Config{}
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	manager := &Manager{
		config: config,
		logger: log.DefaultLogger,
		nodes:  syncmap.New[int64, *Node](),
	}
	for _, opt := range opts {
		opt.Apply(manager)
	}

	manager.pool = workerpool.New(
		workerpool.WithCapacity(config.PoolCapacity),
		workerpool.WithLogger(manager.logger),
	)

	if manager.meter != nil {
		if err := manager.observeFleet(); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// UpdateNode builds a fresh handle from the record and swaps it in. The
// swap is atomic from the readers' point of view: a concurrent GetNode
// observes either the old or the new handle, never an intermediate state.
// The replaced handle, if any, is retired on the supervised pool so its
// teardown latency never blocks the caller.
func (m *Manager) UpdateNode(record *Record) (*Node, error) {
	node, err := NewNode(record, m.config.Client,
		WithNodeLogger(m.logger),
		WithNodeRequestTimeout(m.config.RequestTimeout))
	if err != nil {
		return nil, err
	}

	if old, ok := m.nodes.Swap(node.ID(), node); ok {
		m.teardown(old)
	}
	return node, nil
}

// RemoveNode retires the handle of the given node id, with no replacement.
func (m *Manager) RemoveNode(id int64) error {
	node, ok := m.nodes.Pop(id)
	if !ok {
		return fmt.Errorf("fleet: remove node=(%d): %w", id, gerrors.ErrNodeNotFound)
	}
	m.teardown(node)
	return nil
}

// GetNode returns the live handle of the given node id.
func (m *Manager) GetNode(id int64) (*Node, bool) {
	return m.nodes.Get(id)
}

// NodesCount returns the number of live handles.
func (m *Manager) NodesCount() int {
	return m.nodes.Len()
}

// Nodes returns a snapshot of every live handle.
func (m *Manager) Nodes() []*Node {
	return m.nodes.Values()
}

// HealthyNodes returns the handles whose last observed check succeeded.
// Health is read live from each handle at call time, not cached at
// lock-acquisition time.
func (m *Manager) HealthyNodes() []*Node {
	return m.filter(Healthy)
}

// BrokenNodes returns the handles whose last observed check failed.
func (m *Manager) BrokenNodes() []*Node {
	return m.filter(Broken)
}

// NotConnectedNodes returns the handles never connected so far.
func (m *Manager) NotConnectedNodes() []*Node {
	return m.filter(NotConnected)
}

// UpdateUsers pushes the whole user set to every node, fire-and-forget:
// each node's sync runs detached on the pool and failures are logged, not
// surfaced. Bulk synchronization is background work by definition.
func (m *Manager) UpdateUsers(users []*commands.User) {
	for _, node := range m.nodes.Values() {
		name := fmt.Sprintf("sync users node=(%d)", node.ID())
		if err := m.pool.Submit(name, func() error {
			return node.SyncUsers(users)
		}); err != nil {
			m.logger.Warnf("fleet: sync users node=(%d) not submitted: %v", node.ID(), err)
		}
	}
}

// UpdateUser pushes one user to every node and waits: it is request-path
// work, so the first failure is returned to the caller.
func (m *Manager) UpdateUser(ctx context.Context, user *commands.User) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, node := range m.nodes.Values() {
		eg.Go(func() error {
			return node.UpdateUser(ctx, user)
		})
	}
	return eg.Wait()
}

// Close retires every handle and stops the pool, bounded by the context.
func (m *Manager) Close(ctx context.Context) error {
	if m.registration != nil {
		_ = m.registration.Unregister()
	}

	for _, id := range m.nodes.Keys() {
		if node, ok := m.nodes.Pop(id); ok {
			m.teardown(node)
		}
	}

	if err := m.pool.Stop(ctx); err != nil {
		return fmt.Errorf("fleet: close: %w", err)
	}
	return nil
}

// teardown retires one handle on the pool, detached from any caller. When
// the pool is already stopping the handle is retired inline instead.
func (m *Manager) teardown(node *Node) {
	name := fmt.Sprintf("teardown node=(%d)", node.ID())
	if err := m.pool.Submit(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.RequestTimeout)
		defer cancel()
		node.Stop(ctx)
		return nil
	}); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.RequestTimeout)
		defer cancel()
		node.Stop(ctx)
	}
}

// filter snapshots the handles currently in the given health class.
func (m *Manager) filter(health Health) []*Node {
	out := make([]*Node, 0, m.nodes.Len())
	for _, node := range m.nodes.Values() {
		if node.Health() == health {
			out = append(out, node)
		}
	}
	return out
}

// observeFleet registers the observable gauges counting nodes per health
// class.
func (m *Manager) observeFleet() error {
	fleetMetric, err := metric.NewFleetMetric(m.meter)
	if err != nil {
		return err
	}

	m.registration, err = m.meter.RegisterCallback(
		func(_ context.Context, observer otelmetric.Observer) error {
			observer.ObserveInt64(fleetMetric.HealthyCount(), int64(len(m.HealthyNodes())))
			observer.ObserveInt64(fleetMetric.BrokenCount(), int64(len(m.BrokenNodes())))
			observer.ObserveInt64(fleetMetric.NotConnectedCount(), int64(len(m.NotConnectedNodes())))
			return nil
		},
		fleetMetric.HealthyCount(),
		fleetMetric.BrokenCount(),
		fleetMetric.NotConnectedCount(),
	)
	return err
}
