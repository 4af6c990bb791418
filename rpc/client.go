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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tochemey/gofleet/broker"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/metric"
)

// DefaultRequestTimeout bounds a request when neither the context nor the
// config carries a deadline.
const DefaultRequestTimeout = 5 * time.Second

// ClientConfig holds the settings of an rpc client.
type ClientConfig struct {
	// Client is the worker's broker client. Required.
	Client *broker.Client
	// Subject is the service's well-known subject. Required.
	Subject string
	// Timeout bounds each request unless the caller's context already has a
	// deadline. Defaults to DefaultRequestTimeout.
	Timeout time.Duration
}

var _ validation.Validator = (*ClientConfig)(nil)

// Validate implements validation.Validator.
func (c *ClientConfig) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Client != nil, "Client is required").
		AddValidator(validation.NewSubjectValidator(c.Subject)).
		AddAssertion(c.Timeout > 0, "Timeout must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *ClientConfig) Sanitize() {
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = DefaultSubject
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultRequestTimeout
	}
}

// Client sends requests to the service listening on one subject.
type Client struct {
	config *ClientConfig
	logger log.Logger
	metric *metric.RPCMetric
}

// NewClient creates an rpc client.
func NewClient(config *ClientConfig, opts ...ClientOption) (*Client, error) {
	if config == nil {
		config = &ClientConfig{}
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		config: config,
		logger: log.DefaultLogger,
	}
	for _, opt := range opts {
		opt.Apply(client)
	}
	return client, nil
}

// Subject returns the subject this client sends to.
func (c *Client) Subject() string {
	return c.config.Subject
}

// Request sends one request and blocks until the reply arrives or the
// deadline passes. The payload is marshaled into the request envelope; the
// reply's data is returned raw for the caller to decode.
//
// Failure taxonomy:
//   - deadline elapsed with no reply: errors.ErrRequestTimeout
//   - nobody subscribed on the subject: errors.ErrNoResponders
//   - connection closed under the request: errors.ErrBrokerNotConnected
//   - service answered with an error reply: *errors.RemoteError
func (c *Client) Request(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	started := time.Now()
	data, err := c.request(ctx, action, payload)
	c.metric.Request(ctx, action, time.Since(started), err)
	return data, err
}

func (c *Client) request(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	if !c.config.Client.Enabled() {
		return nil, fmt.Errorf("rpc: request action=(%s): %w", action, gerrors.ErrBrokerDisabled)
	}
	conn := c.config.Client.Conn()
	if conn == nil {
		return nil, fmt.Errorf("rpc: request action=(%s): %w", action, gerrors.ErrBrokerNotConnected)
	}

	var raw json.RawMessage
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("rpc: marshal action=(%s) payload: %w", action, err)
		}
	}
	request, err := json.Marshal(codec.Request{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal action=(%s) request: %w", action, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	message, err := conn.RequestWithContext(ctx, c.config.Subject, request)
	if err != nil {
		switch {
		case errors.Is(err, nats.ErrNoResponders):
			return nil, fmt.Errorf("rpc: request action=(%s): %w", action, gerrors.ErrNoResponders)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
			return nil, fmt.Errorf("rpc: request action=(%s): %w", action, gerrors.ErrRequestTimeout)
		case errors.Is(err, nats.ErrConnectionClosed):
			return nil, fmt.Errorf("rpc: request action=(%s): %w", action, gerrors.ErrBrokerNotConnected)
		default:
			return nil, fmt.Errorf("rpc: request action=(%s): %w", action, err)
		}
	}

	reply := new(codec.Reply)
	if err := json.Unmarshal(message.Data, reply); err != nil {
		return nil, fmt.Errorf("rpc: decode action=(%s) reply: %w", action, err)
	}
	if !reply.OK {
		return nil, gerrors.NewRemoteError(reply.Code, reply.Error)
	}
	return reply.Data, nil
}

// HealthCheck asks the service for a liveness answer.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Request(ctx, ActionHealthCheck, nil)
	return err
}
