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

// Package broker owns the worker's single connection to the message bus.
// Every other component (router, rpc, kvstore) borrows the connection from
// here rather than dialing its own. A client built without a URL is disabled
// and turns the process into a standalone single-worker deployment.
package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/log"
)

const maxConnectRetries = 5

// Client wraps the broker connection shared by all components of a worker.
type Client struct {
	config *Config
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger log.Logger
}

// Connect validates the config and establishes the broker connection with
// exponential backoff. When the config carries no URL the returned client is
// disabled: Enabled reports false, Conn returns nil and KeyValue returns
// ErrBrokerDisabled.
func Connect(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = &Config{}
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

	if !config.Enabled() {
		client.logger.Info("no broker configured, running in single-worker mode")
		return client, nil
	}

	natsOpts := nats.GetDefaultOptions()
	natsOpts.Url = config.URL
	natsOpts.Name = config.Name
	natsOpts.Timeout = config.ConnectTimeout
	natsOpts.ReconnectWait = config.ReconnectWait
	natsOpts.MaxReconnect = config.MaxReconnects

	// attempt the initial connection a few times with backoff so that a
	// worker racing the broker at boot does not give up immediately
	var conn *nats.Conn
	retrier := retry.NewRetrier(maxConnectRetries, 100*time.Millisecond, config.ReconnectWait)
	err := retrier.Run(func() error {
		var err error
		conn, err = natsOpts.Connect()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: jetstream: %w", err)
	}

	client.conn = conn
	client.js = js
	client.logger.Infof("connected to broker=(%s)", config.URL)
	return client, nil
}

// Enabled reports whether this client carries a live broker configuration.
func (c *Client) Enabled() bool {
	return c.config.Enabled()
}

// Conn returns the underlying connection, nil when the client is disabled.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Name returns the connection name of this worker.
func (c *Client) Name() string {
	return c.config.Name
}

// KeyValue opens the named JetStream KeyValue bucket, creating it when it
// does not exist yet. Two workers racing the creation both end up with the
// same bucket.
func (c *Client) KeyValue(bucket string) (nats.KeyValue, error) {
	if c.conn == nil {
		return nil, gerrors.ErrBrokerDisabled
	}

	kv, err := c.js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}

	kv, err = c.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	if err != nil {
		// another worker may have created the bucket in between
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			kv, err = c.js.KeyValue(bucket)
		}

		if err != nil {
			return nil, fmt.Errorf("broker: create bucket=(%s): %w", bucket, err)
		}
	}

	return kv, nil
}

// Close releases the broker connection. Close is idempotent.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.conn.Close()
	c.conn = nil
	c.js = nil
	return nil
}
