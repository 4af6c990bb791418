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

package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	"github.com/tochemey/gofleet/log"
)

// DefaultMonitorInterval is the probe period used when none is supplied.
const DefaultMonitorInterval = 30 * time.Second

// Monitor periodically probes the fleet: healthy nodes get a health check,
// broken and never-connected nodes get a reconnection attempt. It is the
// background repair loop keeping the health classifications honest.
type Monitor struct {
	// helps lock concurrent access
	mu sync.Mutex

	manager  *Manager
	interval time.Duration
	timeout  time.Duration

	quartzScheduler quartz.Scheduler
	// states whether the quartzScheduler has started or not
	started *atomic.Bool
	logger  log.Logger
}

// NewMonitor creates a fleet monitor probing every interval.
func NewMonitor(manager *Manager, interval time.Duration, opts ...MonitorOption) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}

	// quartz logging is off: probe outcomes are logged here, with node context
	quartzScheduler, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))

	monitor := &Monitor{
		manager:         manager,
		interval:        interval,
		timeout:         manager.config.RequestTimeout,
		quartzScheduler: quartzScheduler,
		started:         atomic.NewBool(false),
		logger:          log.DefaultLogger,
	}
	for _, opt := range opts {
		opt.Apply(monitor)
	}
	return monitor
}

// Start schedules the probe job and starts the scheduler. Start is
// idempotent.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started.Load() {
		return nil
	}

	m.quartzScheduler.Start(ctx)
	m.started.Store(m.quartzScheduler.IsStarted())

	probe := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		m.probe(ctx)
		return true, nil
	})
	detail := quartz.NewJobDetail(probe, quartz.NewJobKey("fleet-monitor"))
	if err := m.quartzScheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(m.interval)); err != nil {
		return fmt.Errorf("fleet: monitor start: %w", err)
	}

	m.logger.Infof("fleet monitor started, probing every %v", m.interval)
	return nil
}

// Stop clears the schedule and waits for an in-flight probe, bounded by
// the given context. Stop is safe to call when never started.
func (m *Monitor) Stop(ctx context.Context) {
	if !m.started.Load() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.quartzScheduler.Clear()
	m.quartzScheduler.Stop()
	m.started.Store(m.quartzScheduler.IsStarted())
	m.quartzScheduler.Wait(ctx)
	m.logger.Info("fleet monitor stopped")
}

// probe runs one monitoring round.
func (m *Monitor) probe(ctx context.Context) {
	for _, node := range m.manager.HealthyNodes() {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		if err := node.HealthCheck(checkCtx); err != nil {
			m.logger.Warnf("fleet: node=(%d) failed its health check: %v", node.ID(), err)
		}
		cancel()
	}

	broken := append(m.manager.BrokenNodes(), m.manager.NotConnectedNodes()...)
	for _, node := range broken {
		connectCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := node.Connect(connectCtx)
		cancel()
		if err != nil {
			m.logger.Warnf("fleet: node=(%d) failed to reconnect: %v", node.ID(), err)
			continue
		}
		m.logger.Infof("fleet: node=(%d) reconnected", node.ID())
	}
}
