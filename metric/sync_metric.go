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

// Package metric defines the OpenTelemetry instruments recorded by the
// router, the rpc framework and the node fleet. Metrics are optional
// everywhere: a nil metric records nothing.
package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// SyncMetric defines the state synchronization metrics
type SyncMetric struct {
	publishedCount metric.Int64Counter
	receivedCount  metric.Int64Counter
	failuresCount  metric.Int64Counter
}

// NewSyncMetric creates an instance of SyncMetric
func NewSyncMetric(meter metric.Meter) (*SyncMetric, error) {
	syncMetric := new(SyncMetric)
	var err error
	if syncMetric.publishedCount, err = meter.Int64Counter(
		"sync_events_published_count",
		metric.WithDescription("Total number of sync events published"),
	); err != nil {
		return nil, fmt.Errorf("failed to create publishedCount instrument, %v", err)
	}
	if syncMetric.receivedCount, err = meter.Int64Counter(
		"sync_events_received_count",
		metric.WithDescription("Total number of sync events received"),
	); err != nil {
		return nil, fmt.Errorf("failed to create receivedCount instrument, %v", err)
	}
	if syncMetric.failuresCount, err = meter.Int64Counter(
		"sync_events_failed_count",
		metric.WithDescription("Total number of sync events that failed to publish or apply"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failuresCount instrument, %v", err)
	}
	return syncMetric, nil
}

// Published records a published sync event
func (x *SyncMetric) Published(ctx context.Context) {
	if x == nil {
		return
	}
	x.publishedCount.Add(ctx, 1)
}

// Received records a received sync event
func (x *SyncMetric) Received(ctx context.Context) {
	if x == nil {
		return
	}
	x.receivedCount.Add(ctx, 1)
}

// Failed records a sync event that could not be published or applied
func (x *SyncMetric) Failed(ctx context.Context) {
	if x == nil {
		return
	}
	x.failuresCount.Add(ctx, 1)
}
