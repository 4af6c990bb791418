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
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/gofleet/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a manager.
	Apply(manager *Manager)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(manager *Manager)

// Apply applies the manager's option
func (f OptionFunc) Apply(manager *Manager) {
	f(manager)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(manager *Manager) {
		manager.logger = logger
	})
}

// WithMeter registers observable gauges counting the nodes per health
// class on the given meter.
func WithMeter(meter otelmetric.Meter) Option {
	return OptionFunc(func(manager *Manager) {
		manager.meter = meter
	})
}

// nodeSettings carries the per-handle settings a NodeOption can change.
type nodeSettings struct {
	timeout time.Duration
	logger  log.Logger
}

// NodeOption is the interface that applies a configuration option to a
// node handle.
type NodeOption interface {
	// Apply sets the NodeOption value of a handle.
	Apply(settings *nodeSettings)
}

var _ NodeOption = NodeOptionFunc(nil)

// NodeOptionFunc implements the NodeOption interface.
type NodeOptionFunc func(settings *nodeSettings)

// Apply applies the handle's option
func (f NodeOptionFunc) Apply(settings *nodeSettings) {
	f(settings)
}

// WithNodeLogger sets the handle's logger
func WithNodeLogger(logger log.Logger) NodeOption {
	return NodeOptionFunc(func(settings *nodeSettings) {
		settings.logger = logger
	})
}

// WithNodeRequestTimeout bounds every request issued through the handle.
func WithNodeRequestTimeout(timeout time.Duration) NodeOption {
	return NodeOptionFunc(func(settings *nodeSettings) {
		if timeout > 0 {
			settings.timeout = timeout
		}
	})
}

// MonitorOption is the interface that applies a configuration option to
// the fleet monitor.
type MonitorOption interface {
	// Apply sets the MonitorOption value of a monitor.
	Apply(monitor *Monitor)
}

var _ MonitorOption = MonitorOptionFunc(nil)

// MonitorOptionFunc implements the MonitorOption interface.
type MonitorOptionFunc func(monitor *Monitor)

// Apply applies the monitor's option
func (f MonitorOptionFunc) Apply(monitor *Monitor) {
	f(monitor)
}

// WithMonitorLogger sets the monitor's logger
func WithMonitorLogger(logger log.Logger) MonitorOption {
	return MonitorOptionFunc(func(monitor *Monitor) {
		monitor.logger = logger
	})
}
