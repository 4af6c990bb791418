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

package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"

	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/internal/types"
)

// logStream is one live log streaming session. A session holds no rpc
// request open: it owns a freshly minted subject pair and dies with the
// source, the stop signal or the service, whichever comes first.
type logStream struct {
	id     string
	cancel context.CancelFunc
	done   chan types.Unit
}

// openLogSession mints a new session, wires its stop subject and starts
// forwarding backend log lines to its data subject.
func (x *Service) openLogSession() (*commands.LogSession, error) {
	id := uuid.NewString()
	streamCtx, cancel := context.WithCancel(context.Background())

	lines, err := x.config.Backend.TailLogs(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: stream logs node=(%d): %w", x.config.NodeID, err)
	}

	conn := x.config.Client.Conn()
	stopSubject := commands.LogsStopSubject(id)
	stop, err := conn.Subscribe(stopSubject, func(*nats.Msg) {
		cancel()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: stream logs node=(%d): %w", x.config.NodeID, err)
	}
	// the stop subject must be live before the requester learns about it
	if err := conn.Flush(); err != nil {
		_ = stop.Unsubscribe()
		cancel()
		return nil, fmt.Errorf("agent: stream logs node=(%d): %w", x.config.NodeID, err)
	}

	session := &logStream{id: id, cancel: cancel, done: make(chan types.Unit)}
	x.sessions.Set(id, session)
	go x.stream(streamCtx, session, stop, lines)

	x.logger.Infof("node=(%d) opened log session=(%s)", x.config.NodeID, id)
	return &commands.LogSession{
		ID:          id,
		Subject:     commands.LogsSubject(id),
		StopSubject: stopSubject,
	}, nil
}

// stream forwards backend lines to the session's data subject until the
// source closes, the stop signal arrives or the service stops, then frees
// the session.
func (x *Service) stream(ctx context.Context, session *logStream, stop *nats.Subscription, lines <-chan string) {
	defer close(session.done)
	defer func() {
		_ = stop.Unsubscribe()
		session.cancel()
		x.sessions.Delete(session.id)
		x.logger.Infof("node=(%d) closed log session=(%s)", x.config.NodeID, session.id)
	}()

	subject := commands.LogsSubject(session.id)
	conn := x.config.Client.Conn()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := conn.Publish(subject, []byte(line)); err != nil {
				x.logger.Warnf("agent: node=(%d) log session=(%s) publish: %v", x.config.NodeID, session.id, err)
				return
			}
		}
	}
}

// closeSessions signals every live session and waits for each to wind
// down, bounded by the given context.
func (x *Service) closeSessions(ctx context.Context) {
	for _, id := range x.sessions.Keys() {
		session, ok := x.sessions.Pop(id)
		if !ok {
			continue
		}
		session.cancel()
		select {
		case <-session.done:
		case <-ctx.Done():
			x.logger.Warnf("agent: node=(%d) log session=(%s) did not close in time", x.config.NodeID, id)
		}
	}
}
