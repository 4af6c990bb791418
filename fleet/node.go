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

package fleet

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/atomic"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/core"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/rpc"
)

// Node is the live handle of one fleet node: the panel-side client of that
// node's worker. Health is owned here and transitions on every observed
// outcome, so readers always get the latest observation rather than a
// cached classification.
type Node struct {
	record *Record
	client *broker.Client
	rpc    *rpc.Client
	health *atomic.Int32
	logger log.Logger
}

// NewNode builds the handle of the given node record. The record is
// sanitized and validated here, so handles never carry a malformed record.
func NewNode(record *Record, client *broker.Client, opts ...NodeOption) (*Node, error) {
	if record == nil {
		return nil, fmt.Errorf("fleet: new node: record is nil")
	}
	if err := record.Sanitize(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	node := &Node{
		record: record,
		client: client,
		health: atomic.NewInt32(int32(NotConnected)),
		logger: log.DefaultLogger,
	}

	settings := &nodeSettings{timeout: rpc.DefaultRequestTimeout, logger: node.logger}
	for _, opt := range opts {
		opt.Apply(settings)
	}
	node.logger = settings.logger

	rpcClient, err := rpc.NewClient(&rpc.ClientConfig{
		Client:  client,
		Subject: commands.NodeRPCSubject(record.ID),
		Timeout: settings.timeout,
	}, rpc.WithClientLogger(settings.logger))
	if err != nil {
		return nil, err
	}
	node.rpc = rpcClient
	return node, nil
}

// ID returns the node id.
func (n *Node) ID() int64 {
	return n.record.ID
}

// Record returns a copy of the node record.
func (n *Node) Record() Record {
	return *n.record
}

// Health returns the latest observed health classification.
func (n *Node) Health() Health {
	return Health(n.health.Load())
}

// Connect asks the node worker to start its proxy engine. The handle is
// Connecting for the duration of the attempt and lands on Healthy or
// Broken depending on the outcome.
func (n *Node) Connect(ctx context.Context) error {
	if n.Health() == Invalid {
		return gerrors.ErrNodeStopped
	}

	n.setHealth(Connecting)
	if _, err := n.rpc.Request(ctx, commands.ConnectNode, nil); err != nil {
		n.setHealth(Broken)
		return fmt.Errorf("fleet: connect node=(%d): %w", n.record.ID, err)
	}
	n.setHealth(Healthy)
	return nil
}

// HealthCheck probes the node worker and records the observed outcome.
func (n *Node) HealthCheck(ctx context.Context) error {
	if n.Health() == Invalid {
		return gerrors.ErrNodeStopped
	}

	if err := n.rpc.HealthCheck(ctx); err != nil {
		n.setHealth(Broken)
		return fmt.Errorf("fleet: health check node=(%d): %w", n.record.ID, err)
	}
	n.setHealth(Healthy)
	return nil
}

// UpdateUser pushes one user to the node worker and waits for the reply.
func (n *Node) UpdateUser(ctx context.Context, user *commands.User) error {
	if n.Health() == Invalid {
		return gerrors.ErrNodeStopped
	}
	if _, err := n.rpc.Request(ctx, commands.UpdateUser, user); err != nil {
		return fmt.Errorf("fleet: update user node=(%d): %w", n.record.ID, err)
	}
	return nil
}

// ApplyCore pushes a validated engine configuration to the node worker and
// waits until the worker applied it.
func (n *Node) ApplyCore(ctx context.Context, config *core.Core) error {
	if n.Health() == Invalid {
		return gerrors.ErrNodeStopped
	}
	request := &commands.ApplyCoreRequest{CoreID: config.ID(), Config: config.Config()}
	if _, err := n.rpc.Request(ctx, commands.UpdateCore, request); err != nil {
		return fmt.Errorf("fleet: apply core node=(%d): %w", n.record.ID, err)
	}
	return nil
}

// Stats returns the node worker's system statistics.
func (n *Node) Stats(ctx context.Context) (*commands.SystemStats, error) {
	if n.Health() == Invalid {
		return nil, gerrors.ErrNodeStopped
	}
	data, err := n.rpc.Request(ctx, commands.GetNodeSystemStats, nil)
	if err != nil {
		return nil, fmt.Errorf("fleet: stats node=(%d): %w", n.record.ID, err)
	}
	stats := new(commands.SystemStats)
	if err := json.Unmarshal(data, stats); err != nil {
		return nil, fmt.Errorf("fleet: stats node=(%d): %w", n.record.ID, err)
	}
	return stats, nil
}

// UserStats returns the node worker's online statistics for one user.
func (n *Node) UserStats(ctx context.Context, username string) (*commands.UserStats, error) {
	if n.Health() == Invalid {
		return nil, gerrors.ErrNodeStopped
	}
	data, err := n.rpc.Request(ctx, commands.GetUserOnlineStats, &commands.UserStatsRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("fleet: user stats node=(%d): %w", n.record.ID, err)
	}
	stats := new(commands.UserStats)
	if err := json.Unmarshal(data, stats); err != nil {
		return nil, fmt.Errorf("fleet: user stats node=(%d): %w", n.record.ID, err)
	}
	return stats, nil
}

// TailLogs opens a log streaming session on the node worker and returns
// its freshly minted subject pair. The caller subscribes the data subject
// and publishes anything to the stop subject when done.
func (n *Node) TailLogs(ctx context.Context) (*commands.LogSession, error) {
	if n.Health() == Invalid {
		return nil, gerrors.ErrNodeStopped
	}
	data, err := n.rpc.Request(ctx, commands.StreamLogs, nil)
	if err != nil {
		return nil, fmt.Errorf("fleet: tail logs node=(%d): %w", n.record.ID, err)
	}
	session := new(commands.LogSession)
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("fleet: tail logs node=(%d): %w", n.record.ID, err)
	}
	return session, nil
}

// SyncUsers replaces the node worker's whole user set, fire-and-forget:
// the command is published to the node's command subject and not awaited.
func (n *Node) SyncUsers(users []*commands.User) error {
	return n.command(commands.SyncUsers, &commands.SyncUsersCommand{Users: users})
}

// Stop retires the handle: health turns Invalid and stays there, then the
// node worker is asked to disconnect. Teardown errors are logged, never
// propagated, because teardown runs detached from any caller.
func (n *Node) Stop(ctx context.Context) {
	if Health(n.health.Swap(int32(Invalid))) == Invalid {
		return
	}
	if _, err := n.rpc.Request(ctx, commands.DisconnectNode, nil); err != nil {
		n.logger.Warnf("fleet: disconnect node=(%d): %v", n.record.ID, err)
	}
}

// command publishes one fire-and-forget command to the node's command subject.
func (n *Node) command(action string, payload any) error {
	if n.Health() == Invalid {
		return gerrors.ErrNodeStopped
	}
	if !n.client.Enabled() {
		return fmt.Errorf("fleet: command action=(%s) node=(%d): %w", action, n.record.ID, gerrors.ErrBrokerDisabled)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("fleet: command action=(%s) node=(%d): %w", action, n.record.ID, err)
		}
		raw = data
	}

	data, err := json.Marshal(&codec.Request{Action: action, Payload: raw})
	if err != nil {
		return fmt.Errorf("fleet: command action=(%s) node=(%d): %w", action, n.record.ID, err)
	}
	if err := n.client.Conn().Publish(commands.NodeCommandSubject(n.record.ID), data); err != nil {
		return fmt.Errorf("fleet: command action=(%s) node=(%d): %w", action, n.record.ID, err)
	}
	return nil
}

// setHealth transitions the health unless the handle was retired: Invalid
// is sticky so a racing probe cannot resurrect a handle mid-teardown.
func (n *Node) setHealth(health Health) {
	for {
		current := n.health.Load()
		if Health(current) == Invalid {
			return
		}
		if n.health.CompareAndSwap(current, int32(health)) {
			return
		}
	}
}
