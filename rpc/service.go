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
	"runtime"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/tochemey/gofleet/broker"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/internal/syncmap"
	"github.com/tochemey/gofleet/internal/types"
	"github.com/tochemey/gofleet/internal/validation"
	"github.com/tochemey/gofleet/log"
)

const (
	// DefaultSubject is the well-known subject a service listens on when the
	// config leaves it empty.
	DefaultSubject = "gofleet.rpc"
	// DefaultConcurrency caps handler executions running at once. Requests
	// beyond the cap queue in the subscription buffer instead of failing.
	DefaultConcurrency = 20
	// requestBufferSize bounds the subscription channel.
	requestBufferSize = 256
)

// ServiceConfig holds the settings of an rpc service.
type ServiceConfig struct {
	// Client is the worker's broker client. Required.
	Client *broker.Client
	// Subject is the well-known subject to serve. Defaults to DefaultSubject.
	Subject string
	// Concurrency caps handlers running at once. Defaults to
	// DefaultConcurrency.
	Concurrency int64
}

var _ validation.Validator = (*ServiceConfig)(nil)

// Validate implements validation.Validator.
func (c *ServiceConfig) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Client != nil, "Client is required").
		AddValidator(validation.NewSubjectValidator(c.Subject)).
		AddAssertion(c.Concurrency > 0, "Concurrency must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *ServiceConfig) Sanitize() {
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = DefaultSubject
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// Service answers requests on one well-known subject. The subscription
// callback never runs handlers itself: each request is handed to a
// semaphore-gated goroutine so a slow handler cannot starve delivery of the
// requests behind it. Every request gets exactly one reply, including
// malformed requests, unknown actions and panicking handlers.
type Service struct {
	mu     sync.Mutex
	config *ServiceConfig
	logger log.Logger

	handlers *syncmap.SyncMap[string, Handler]
	sem      *semaphore.Weighted

	started      *atomic.Bool
	subscription *nats.Subscription
	messages     chan *nats.Msg
	cancelLoop   context.CancelFunc
	done         chan types.Unit
	inflight     sync.WaitGroup
}

// NewService creates an rpc service. The health_check action answers without
// any registration.
func NewService(config *ServiceConfig, opts ...ServiceOption) (*Service, error) {
	if config == nil {
		config = &ServiceConfig{}
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service := &Service{
		config:   config,
		logger:   log.DefaultLogger,
		handlers: syncmap.New[string, Handler](),
		sem:      semaphore.NewWeighted(config.Concurrency),
		started:  atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(service)
	}

	service.handlers.Set(ActionHealthCheck, func(context.Context, json.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})
	return service, nil
}

// Register binds the handler for the given action. The last registration
// wins.
func (s *Service) Register(action string, handler Handler) {
	s.handlers.Set(action, handler)
}

// Subject returns the subject this service listens on.
func (s *Service) Subject() string {
	return s.config.Subject
}

// Start subscribes and begins serving. It is idempotent and a no-op when
// the broker is disabled.
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}

	if !s.config.Client.Enabled() {
		s.logger.Info("broker disabled, rpc service not serving")
		s.started.Store(true)
		return nil
	}

	conn := s.config.Client.Conn()
	s.messages = make(chan *nats.Msg, requestBufferSize)
	subscription, err := conn.ChanSubscribe(s.config.Subject, s.messages)
	if err != nil {
		return fmt.Errorf("rpc: subscribe subject=(%s): %w", s.config.Subject, err)
	}
	if err := conn.Flush(); err != nil {
		_ = subscription.Unsubscribe()
		return fmt.Errorf("rpc: flush: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.subscription = subscription
	s.cancelLoop = cancel
	s.done = make(chan types.Unit)
	go s.receive(loopCtx)

	s.started.Store(true)
	s.logger.Infof("rpc service serving on subject=(%s)", s.config.Subject)
	return nil
}

// Stop unsubscribes and waits for in-flight handlers, bounded by the given
// context. It is safe to call on a service that never started.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Swap(false) {
		return nil
	}

	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Warnf("rpc: unsubscribe: %v", err)
		}
		s.subscription = nil
	}

	if s.cancelLoop != nil {
		s.cancelLoop()
		select {
		case <-s.done:
		case <-ctx.Done():
			return fmt.Errorf("rpc: stop: %w", ctx.Err())
		}
		s.cancelLoop = nil
	}

	finished := make(chan types.Unit)
	go func() {
		s.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return fmt.Errorf("rpc: stop: %w", ctx.Err())
	}
	return nil
}

func (s *Service) receive(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-s.messages:
			if !ok {
				return
			}
			// block here, not in the handler: queued requests wait their turn
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				defer s.sem.Release(1)
				s.serve(ctx, message)
			}()
		}
	}
}

func (s *Service) serve(ctx context.Context, message *nats.Msg) {
	request := new(codec.Request)
	if err := json.Unmarshal(message.Data, request); err != nil {
		s.reply(message, "?", nil, gerrors.NewRemoteError(codeBadPayload, fmt.Sprintf("malformed request: %v", err)))
		return
	}

	handler, ok := s.handlers.Get(request.Action)
	if !ok {
		s.reply(message, request.Action, nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownAction, request.Action))
		return
	}

	data, err := s.run(ctx, handler, request.Payload)
	s.reply(message, request.Action, data, err)
}

// reply sends the one and only reply for a request.
func (s *Service) reply(message *nats.Msg, action string, data any, err error) {
	reply := codec.Reply{OK: err == nil}
	switch {
	case err != nil:
		reply.Error = err.Error()
		reply.Code = codeInternal
		remoteErr := new(gerrors.RemoteError)
		switch {
		case errors.As(err, &remoteErr):
			reply.Code = remoteErr.Code()
			reply.Error = remoteErr.Message()
		case errors.Is(err, gerrors.ErrUnknownAction):
			reply.Code = codeUnknownAction
		}
	case data != nil:
		payload, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			s.logger.Errorf("rpc: marshal action=(%s) reply: %v", action, marshalErr)
			reply = codec.Reply{OK: false, Error: "reply marshaling failed", Code: codeInternal}
		} else {
			reply.Data = payload
		}
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		s.logger.Errorf("rpc: marshal action=(%s) reply envelope: %v", action, err)
		return
	}
	if err := message.Respond(raw); err != nil {
		s.logger.Errorf("rpc: respond action=(%s): %v", action, err)
	}
}

// run executes the handler and converts a panic into an error so the
// requester still gets its reply.
func (s *Service) run(ctx context.Context, handler Handler, payload json.RawMessage) (data any, err error) {
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
			data = nil
		}
	}()
	return handler(ctx, payload)
}
