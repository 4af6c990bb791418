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

package rpc

import (
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/metric"
)

// ClientOption is the interface that applies a client configuration option.
type ClientOption interface {
	// Apply sets the Option value of a client.
	Apply(client *Client)
}

var _ ClientOption = ClientOptionFunc(nil)

// ClientOptionFunc implements the ClientOption interface.
type ClientOptionFunc func(client *Client)

// Apply applies the client's option
func (f ClientOptionFunc) Apply(client *Client) {
	f(client)
}

// WithClientLogger sets the client logger
func WithClientLogger(logger log.Logger) ClientOption {
	return ClientOptionFunc(func(client *Client) {
		client.logger = logger
	})
}

// WithClientMetric sets the metric recorded on each request
func WithClientMetric(rpcMetric *metric.RPCMetric) ClientOption {
	return ClientOptionFunc(func(client *Client) {
		client.metric = rpcMetric
	})
}

// ServiceOption is the interface that applies a service configuration option.
type ServiceOption interface {
	// Apply sets the Option value of a service.
	Apply(service *Service)
}

var _ ServiceOption = ServiceOptionFunc(nil)

// ServiceOptionFunc implements the ServiceOption interface.
type ServiceOptionFunc func(service *Service)

// Apply applies the service's option
func (f ServiceOptionFunc) Apply(service *Service) {
	f(service)
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger log.Logger) ServiceOption {
	return ServiceOptionFunc(func(service *Service) {
		service.logger = logger
	})
}
