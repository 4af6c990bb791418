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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// FleetMetric defines the node fleet metrics
type FleetMetric struct {
	healthyCount      metric.Int64ObservableGauge
	brokenCount       metric.Int64ObservableGauge
	notConnectedCount metric.Int64ObservableGauge
}

// NewFleetMetric creates an instance of FleetMetric. The fleet manager
// registers the callback observing the gauges.
func NewFleetMetric(meter metric.Meter) (*FleetMetric, error) {
	fleetMetric := new(FleetMetric)
	var err error
	if fleetMetric.healthyCount, err = meter.Int64ObservableGauge(
		"fleet_healthy_nodes_count",
		metric.WithDescription("Number of healthy nodes in the fleet"),
	); err != nil {
		return nil, fmt.Errorf("failed to create healthyCount instrument, %v", err)
	}
	if fleetMetric.brokenCount, err = meter.Int64ObservableGauge(
		"fleet_broken_nodes_count",
		metric.WithDescription("Number of broken nodes in the fleet"),
	); err != nil {
		return nil, fmt.Errorf("failed to create brokenCount instrument, %v", err)
	}
	if fleetMetric.notConnectedCount, err = meter.Int64ObservableGauge(
		"fleet_not_connected_nodes_count",
		metric.WithDescription("Number of nodes in the fleet not yet connected"),
	); err != nil {
		return nil, fmt.Errorf("failed to create notConnectedCount instrument, %v", err)
	}
	return fleetMetric, nil
}

// HealthyCount returns the healthy nodes gauge
func (x *FleetMetric) HealthyCount() metric.Int64ObservableGauge {
	return x.healthyCount
}

// BrokenCount returns the broken nodes gauge
func (x *FleetMetric) BrokenCount() metric.Int64ObservableGauge {
	return x.brokenCount
}

// NotConnectedCount returns the not connected nodes gauge
func (x *FleetMetric) NotConnectedCount() metric.Int64ObservableGauge {
	return x.notConnectedCount
}
