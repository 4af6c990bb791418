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

// Package router fans state synchronization events out to per-topic cache
// handlers. Every worker of a deployment holds exactly one subscription on
// the shared worker-sync subject; a mutation published by any worker,
// including the publisher itself, reaches every cache through the same
// handler path. Handlers for one worker run sequentially in publish order.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/internal/syncmap"
	"github.com/tochemey/gofleet/internal/types"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/metric"
)

// Topic names the cache a sync event targets.
type Topic string

const (
	// TopicCore invalidates the proxy-engine configuration cache.
	TopicCore Topic = "core"
	// TopicHost invalidates the host settings cache.
	TopicHost Topic = "host"
	// TopicSetting invalidates the panel settings cache.
	TopicSetting Topic = "setting"
	// TopicNode invalidates the node fleet.
	TopicNode Topic = "node"
	// TopicAdmin invalidates the admin-auth cache.
	TopicAdmin Topic = "admin"
	// TopicUser invalidates per-user state.
	TopicUser Topic = "user"
)

// Handler consumes the payload of a sync event. Handlers run one at a time
// per worker; a slow handler delays the events behind it, never reorders
// them.
type Handler func(ctx context.Context, data []byte) error

// syncBufferSize bounds the subscription channel. Events beyond it pile up
// in the broker's pending buffer.
const syncBufferSize = 256

// Router owns the worker's single subscription on the shared worker-sync
// subject and dispatches each event to the handler registered for its topic.
type Router struct {
	mu     sync.Mutex
	config *Config
	logger log.Logger
	metric *metric.SyncMetric

	handlers *syncmap.SyncMap[Topic, Handler]

	started      *atomic.Bool
	subscription *nats.Subscription
	messages     chan *nats.Msg
	stopSignal   chan types.Unit
	done         chan types.Unit
}

// New creates a message router bound to the given broker client.
func New(config *Config, opts ...Option) (*Router, error) {
	if config == nil {
		config = &Config{}
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	router := &Router{
		config:   config,
		logger:   log.DefaultLogger,
		handlers: syncmap.New[Topic, Handler](),
		started:  atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(router)
	}
	return router, nil
}

// Register binds the handler for the given topic. The last registration for
// a topic wins. Registering while started is allowed; the next event for the
// topic sees the new handler.
func (r *Router) Register(topic Topic, handler Handler) {
	r.handlers.Set(topic, handler)
}

// Enabled reports whether events travel through the broker. When false,
// callers apply their mutations locally instead of publishing them.
func (r *Router) Enabled() bool {
	return r.config.Client.Enabled()
}

// Start opens the subscription and begins dispatching events. It is
// idempotent and a no-op when the broker is disabled.
func (r *Router) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.Load() {
		return nil
	}

	if !r.config.Client.Enabled() {
		r.logger.Info("broker disabled, state synchronization is local-only")
		r.started.Store(true)
		return nil
	}

	conn := r.config.Client.Conn()
	r.messages = make(chan *nats.Msg, syncBufferSize)
	subscription, err := conn.ChanSubscribe(r.config.Subject, r.messages)
	if err != nil {
		return fmt.Errorf("router: subscribe subject=(%s): %w", r.config.Subject, err)
	}
	// make sure the server sees the subscription before Start returns
	if err := conn.Flush(); err != nil {
		_ = subscription.Unsubscribe()
		return fmt.Errorf("router: flush: %w", err)
	}

	r.subscription = subscription
	r.stopSignal = make(chan types.Unit)
	r.done = make(chan types.Unit)
	go r.receive()

	r.started.Store(true)
	r.logger.Infof("router subscribed on subject=(%s)", r.config.Subject)
	return nil
}

// Stop tears the subscription down and waits for the in-flight handler,
// bounded by the given context. It is safe to call on a router that never
// started.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started.Swap(false) {
		return nil
	}

	if r.subscription != nil {
		if err := r.subscription.Unsubscribe(); err != nil {
			r.logger.Warnf("router: unsubscribe: %v", err)
		}
		r.subscription = nil
	}

	if r.stopSignal != nil {
		close(r.stopSignal)
		select {
		case <-r.done:
		case <-ctx.Done():
			return fmt.Errorf("router: stop: %w", ctx.Err())
		}
		r.stopSignal = nil
	}
	return nil
}

// Publish sends one sync event to every worker of the deployment. The
// publisher receives its own event through its subscription like everyone
// else. When the broker is disabled Publish is a no-op: the caller applies
// its mutation locally instead.
//
// Delivery is best-effort. A transport failure is logged and swallowed so a
// flapping broker degrades caches to stale rather than failing writes.
func (r *Router) Publish(ctx context.Context, topic Topic, data any) error {
	if !r.config.Client.Enabled() {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("router: marshal topic=(%s) event: %w", topic, err)
	}
	envelope, err := json.Marshal(codec.SyncEnvelope{Topic: string(topic), Data: payload})
	if err != nil {
		return fmt.Errorf("router: marshal topic=(%s) envelope: %w", topic, err)
	}

	if err := r.config.Client.Conn().Publish(r.config.Subject, envelope); err != nil {
		r.metric.Failed(ctx)
		r.logger.Errorf("router: publish topic=(%s): %v", topic, err)
		return nil
	}
	r.metric.Published(ctx)
	return nil
}

// receive pulls events off the subscription channel one at a time. An event
// is fully handled before the next one is read, preserving per-subscriber
// publish order.
func (r *Router) receive() {
	ctx := context.Background()
	defer close(r.done)
	for {
		select {
		case <-r.stopSignal:
			return
		case message, ok := <-r.messages:
			if !ok {
				return
			}
			r.dispatch(ctx, message.Data)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, data []byte) {
	r.metric.Received(ctx)

	envelope := new(codec.SyncEnvelope)
	if err := json.Unmarshal(data, envelope); err != nil {
		r.metric.Failed(ctx)
		r.logger.Errorf("router: discarding malformed sync event: %v", err)
		return
	}

	handler, ok := r.handlers.Get(Topic(envelope.Topic))
	if !ok {
		r.logger.Debugf("router: no handler for topic=(%s)", envelope.Topic)
		return
	}

	if err := r.run(ctx, handler, envelope.Data); err != nil {
		r.metric.Failed(ctx)
		r.logger.Errorf("router: handler topic=(%s) failed: %v", envelope.Topic, err)
	}
}

// run executes the handler and converts a panic into a PanicError carrying
// the panic site, so one poisoned event cannot kill the receive loop.
func (r *Router) run(ctx context.Context, handler Handler, data []byte) (err error) {
	defer func() {
		if v := recover(); v != nil {
			pc, fn, line, _ := runtime.Caller(2)
			switch e := v.(type) {
			case error:
				err = gerrors.NewPanicError(
					fmt.Errorf("%w at %s[%s:%d]", e, runtime.FuncForPC(pc).Name(), fn, line),
				)
			default:
				err = gerrors.NewPanicError(
					fmt.Errorf("%#v at %s[%s:%d]", v, runtime.FuncForPC(pc).Name(), fn, line),
				)
			}
		}
	}()
	return handler(ctx, data)
}
