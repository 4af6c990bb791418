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

// Package agent runs the node side of the fleet: one worker service per
// proxy node, executing node-scoped requests on behalf of a non-colocated
// panel worker. The service answers on two channels: a request/reply rpc
// subject for operations whose caller waits for an outcome, and a
// fire-and-forget command subject for state propagation where the caller
// has already moved on. Log streaming is a third, session-scoped channel
// minted per request.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/internal/syncmap"
	"github.com/tochemey/gofleet/internal/types"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/internal/workerpool"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/rpc"
)

const (
	// DefaultRPCConcurrency caps rpc handlers running at once. The cap is
	// low because every rpc holds a requester waiting for its reply.
	DefaultRPCConcurrency int64 = 8
	// DefaultCommandConcurrency caps command executions running at once.
	// Commands have no requester to keep waiting, so they tolerate a much
	// higher bound.
	DefaultCommandConcurrency int64 = 64
	// commandBufferSize bounds the command subscription channel.
	commandBufferSize = 256
)

// commandHandler executes one fire-and-forget command. There is no reply
// channel: a returned error is logged by the pool's supervision and the
// command is considered consumed.
type commandHandler func(ctx context.Context, payload json.RawMessage) error

// Config holds the settings of the node worker service.
type Config struct {
	// NodeID identifies the node this worker serves. Required.
	NodeID int64
	// Client is the worker's broker client. Required.
	Client *broker.Client
	// Backend is the node-local proxy engine boundary. Required.
	Backend Backend
	// RPCConcurrency caps rpc handlers running at once. Defaults to
	// DefaultRPCConcurrency.
	RPCConcurrency int64
	// CommandConcurrency caps command executions running at once. Defaults
	// to DefaultCommandConcurrency.
	CommandConcurrency int64
}

// Sanitize fills in the default settings.
func (c *Config) Sanitize() {
	if c.RPCConcurrency == 0 {
		c.RPCConcurrency = DefaultRPCConcurrency
	}
	if c.CommandConcurrency == 0 {
		c.CommandConcurrency = DefaultCommandConcurrency
	}
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.NodeID > 0, "NodeID is required").
		AddAssertion(c.Client != nil, "Client is required").
		AddAssertion(c.Backend != nil, "Backend is required").
		AddAssertion(c.RPCConcurrency > 0, "RPCConcurrency must be greater than 0").
		AddAssertion(c.CommandConcurrency > 0, "CommandConcurrency must be greater than 0").
		Validate()
}

// Service is one node's worker: the remote end of the panel's fleet
// handle.
type Service struct {
	// helps lock concurrent access
	mu sync.Mutex

	config *Config
	logger log.Logger

	rpc      *rpc.Service
	handlers map[string]commandHandler
	pool     *workerpool.WorkerPool

	started      *atomic.Bool
	subscription *nats.Subscription
	commands     chan *nats.Msg
	cancelLoop   context.CancelFunc
	done         chan types.Unit

	sessions *syncmap.SyncMap[string, *logStream]
}

// NewService creates a node worker service. Nothing is served until Start.
func NewService(config *Config, opts ...Option) (*Service, error) {
	if config == nil {
		config = &Config{}
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service := &Service{
		config:   config,
		logger:   log.DefaultLogger,
		started:  atomic.NewBool(false),
		sessions: syncmap.New[string, *logStream](),
	}
	for _, opt := range opts {
		opt.Apply(service)
	}

	service.pool = workerpool.New(
		workerpool.WithCapacity(int(config.CommandConcurrency)),
		workerpool.WithLogger(service.logger),
	)

	rpcService, err := rpc.NewService(&rpc.ServiceConfig{
		Client:      config.Client,
		Subject:     commands.NodeRPCSubject(config.NodeID),
		Concurrency: config.RPCConcurrency,
	}, rpc.WithServiceLogger(service.logger))
	if err != nil {
		return nil, err
	}
	service.rpc = rpcService

	service.registerActions()
	return service, nil
}

// Start subscribes both channels and begins serving. It is idempotent and
// a no-op when the broker is disabled.
func (x *Service) Start(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.started.Load() {
		return nil
	}

	if !x.config.Client.Enabled() {
		x.logger.Info("broker disabled, node worker not serving")
		x.started.Store(true)
		return nil
	}

	if err := x.rpc.Start(ctx); err != nil {
		return fmt.Errorf("agent: start node=(%d): %w", x.config.NodeID, err)
	}

	conn := x.config.Client.Conn()
	subject := commands.NodeCommandSubject(x.config.NodeID)
	x.commands = make(chan *nats.Msg, commandBufferSize)
	subscription, err := conn.ChanSubscribe(subject, x.commands)
	if err != nil {
		_ = x.rpc.Stop(ctx)
		return fmt.Errorf("agent: subscribe subject=(%s): %w", subject, err)
	}
	if err := conn.Flush(); err != nil {
		_ = subscription.Unsubscribe()
		_ = x.rpc.Stop(ctx)
		return fmt.Errorf("agent: flush: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	x.subscription = subscription
	x.cancelLoop = cancel
	x.done = make(chan types.Unit)
	go x.receive(loopCtx)

	x.started.Store(true)
	x.logger.Infof("node worker serving node=(%d)", x.config.NodeID)
	return nil
}

// Stop quiesces the worker: no new requests or commands are accepted, live
// log sessions are closed and in-flight work is awaited, all bounded by
// the given context. It is safe to call on a service that never started.
func (x *Service) Stop(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Swap(false) {
		return nil
	}

	if x.subscription != nil {
		if err := x.subscription.Unsubscribe(); err != nil {
			x.logger.Warnf("agent: unsubscribe: %v", err)
		}
		x.subscription = nil
	}

	if x.cancelLoop != nil {
		x.cancelLoop()
		select {
		case <-x.done:
		case <-ctx.Done():
			return fmt.Errorf("agent: stop: %w", ctx.Err())
		}
		x.cancelLoop = nil
	}

	// the rpc half stops first so no new log session can be minted while
	// the live ones are being closed
	var errs error
	if err := x.rpc.Stop(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	x.closeSessions(ctx)
	if err := x.pool.Stop(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("agent: stop: %w", err))
	}
	return errs
}

// registerActions binds both halves of the wire surface: awaited rpc
// actions and fire-and-forget command actions. update_user, connect_node
// and disconnect_node live on both because callers use them in both modes.
func (x *Service) registerActions() {
	backend := x.config.Backend

	x.rpc.Register(commands.ConnectNode, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, backend.Connect(ctx)
	})
	x.rpc.Register(commands.DisconnectNode, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, backend.Disconnect(ctx)
	})
	x.rpc.Register(commands.UpdateUser, rpc.Typed(func(ctx context.Context, user *commands.User) (any, error) {
		if user == nil {
			return nil, errors.New("user is required")
		}
		return nil, backend.AddUser(ctx, user)
	}))
	x.rpc.Register(commands.RemoveUser, rpc.Typed(func(ctx context.Context, request *commands.RemoveUserRequest) (any, error) {
		if request == nil {
			return nil, errors.New("username is required")
		}
		return nil, backend.RemoveUser(ctx, request.Username)
	}))
	x.rpc.Register(commands.UpdateCore, rpc.Typed(func(ctx context.Context, request *commands.ApplyCoreRequest) (any, error) {
		if request == nil {
			return nil, errors.New("core configuration is required")
		}
		return nil, backend.ApplyCore(ctx, request)
	}))
	x.rpc.Register(commands.GetNodeSystemStats, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return backend.SystemStats(ctx)
	})
	x.rpc.Register(commands.GetUserOnlineStats, rpc.Typed(func(ctx context.Context, request *commands.UserStatsRequest) (any, error) {
		if request == nil {
			return nil, errors.New("username is required")
		}
		return backend.UserStats(ctx, request.Username)
	}))
	x.rpc.Register(commands.StreamLogs, func(context.Context, json.RawMessage) (any, error) {
		return x.openLogSession()
	})

	x.handlers = map[string]commandHandler{
		commands.ConnectNode: func(ctx context.Context, _ json.RawMessage) error {
			return backend.Connect(ctx)
		},
		commands.DisconnectNode: func(ctx context.Context, _ json.RawMessage) error {
			return backend.Disconnect(ctx)
		},
		commands.UpdateUser: typedCommand(func(ctx context.Context, user *commands.User) error {
			if user == nil {
				return errors.New("user is required")
			}
			return backend.AddUser(ctx, user)
		}),
		commands.RemoveUser: typedCommand(func(ctx context.Context, request *commands.RemoveUserRequest) error {
			if request == nil {
				return errors.New("username is required")
			}
			return backend.RemoveUser(ctx, request.Username)
		}),
		commands.SyncUsers: typedCommand(func(ctx context.Context, command *commands.SyncUsersCommand) error {
			if command == nil {
				return errors.New("user set is required")
			}
			return backend.SyncUsers(ctx, command.Users)
		}),
		commands.UpdateNode: typedCommand(func(ctx context.Context, request *commands.ApplyCoreRequest) error {
			if request == nil {
				return errors.New("core configuration is required")
			}
			return backend.ApplyCore(ctx, request)
		}),
	}
}

// receive pulls commands off the subscription until the loop is canceled.
func (x *Service) receive(ctx context.Context) {
	defer close(x.done)
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-x.commands:
			if !ok {
				return
			}
			x.dispatch(message)
		}
	}
}

// dispatch decodes one command and hands it to the pool. Malformed and
// unknown commands are logged and dropped: there is no requester to
// answer. Submission blocks while the pool is at capacity, so queued
// commands wait in the broker's delivery buffer.
func (x *Service) dispatch(message *nats.Msg) {
	request := new(codec.Request)
	if err := json.Unmarshal(message.Data, request); err != nil {
		x.logger.Warnf("agent: node=(%d) dropped a malformed command: %v", x.config.NodeID, err)
		return
	}

	handler, ok := x.handlers[request.Action]
	if !ok {
		x.logger.Warnf("agent: node=(%d) dropped an unknown command action=(%s)", x.config.NodeID, request.Action)
		return
	}

	name := fmt.Sprintf("command action=(%s) node=(%d)", request.Action, x.config.NodeID)
	payload := request.Payload
	if err := x.pool.Submit(name, func() error {
		// a submitted command runs to completion even across Stop; the
		// pool's bounded wait is the only brake
		return handler(context.Background(), payload)
	}); err != nil {
		x.logger.Warnf("agent: node=(%d) command action=(%s) not submitted: %v", x.config.NodeID, request.Action, err)
	}
}

// typedCommand adapts a handler taking a concrete command type, mirroring
// the rpc side's per-action schemas.
func typedCommand[T any](handle func(ctx context.Context, request T) error) commandHandler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var request T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &request); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
		}
		return handle(ctx, request)
	}
}
