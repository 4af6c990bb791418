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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RPCMetric defines the request/reply metrics
type RPCMetric struct {
	requestsCount   metric.Int64Counter
	failuresCount   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewRPCMetric creates an instance of RPCMetric
func NewRPCMetric(meter metric.Meter) (*RPCMetric, error) {
	rpcMetric := new(RPCMetric)
	var err error
	if rpcMetric.requestsCount, err = meter.Int64Counter(
		"rpc_requests_count",
		metric.WithDescription("Total number of rpc requests sent"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requestsCount instrument, %v", err)
	}
	if rpcMetric.failuresCount, err = meter.Int64Counter(
		"rpc_failures_count",
		metric.WithDescription("Total number of rpc requests that failed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failuresCount instrument, %v", err)
	}
	if rpcMetric.requestDuration, err = meter.Float64Histogram(
		"rpc_request_duration",
		metric.WithDescription("Duration of rpc requests"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requestDuration instrument, %v", err)
	}
	return rpcMetric, nil
}

// Request records one rpc round trip with its outcome and duration
func (x *RPCMetric) Request(ctx context.Context, action string, elapsed time.Duration, err error) {
	if x == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("rpc.action", action))
	x.requestsCount.Add(ctx, 1, attrs)
	if err != nil {
		x.failuresCount.Add(ctx, 1, attrs)
	}
	x.requestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}
