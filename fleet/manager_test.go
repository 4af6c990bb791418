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
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/tochemey/gofleet/commands"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
	"github.com/tochemey/gofleet/log"
)

func TestManager(t *testing.T) {
	ctx := context.TODO()
	serv := startNatsServer(t)
	defer serv.Shutdown()

	panelClient := connectClient(t, serv)
	workerClient := connectClient(t, serv)

	newManager := func(t *testing.T) *Manager {
		t.Helper()
		manager, err := NewManager(
			&Config{Client: panelClient, RequestTimeout: time.Second},
			WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		return manager
	}

	t.Run("With a node update swapping handles", func(t *testing.T) {
		manager := newManager(t)
		startNodeService(t, workerClient, 11)

		first, err := manager.UpdateNode(testNodeRecord(11))
		require.NoError(t, err)
		require.NoError(t, first.Connect(ctx))

		got, ok := manager.GetNode(11)
		require.True(t, ok)
		assert.Same(t, first, got)
		assert.Equal(t, 1, manager.NodesCount())

		record := testNodeRecord(11)
		record.Name = "frankfurt-2"
		second, err := manager.UpdateNode(record)
		require.NoError(t, err)
		assert.Equal(t, 1, manager.NodesCount())

		got, ok = manager.GetNode(11)
		require.True(t, ok)
		assert.Same(t, second, got)
		assert.Equal(t, "frankfurt-2", got.Record().Name)

		// the replaced handle retires in the background
		require.Eventually(t, func() bool {
			return first.Health() == Invalid
		}, 3*time.Second, 10*time.Millisecond)

		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With readers racing handle swaps", func(t *testing.T) {
		manager := newManager(t)

		_, err := manager.UpdateNode(testNodeRecord(20))
		require.NoError(t, err)

		stop := make(chan struct{})
		done := make(chan struct{})
		missed := 0
		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
				}
				node, ok := manager.GetNode(20)
				if !ok || node == nil || node.Record().ID != 20 {
					missed++
					return
				}
			}
		}()

		handles := make([]*Node, 0, 10)
		for i := 0; i < 10; i++ {
			node, err := manager.UpdateNode(testNodeRecord(20))
			require.NoError(t, err)
			handles = append(handles, node)
		}
		close(stop)
		<-done

		// a swap never leaves a window where the node is missing
		assert.Zero(t, missed)

		current, ok := manager.GetNode(20)
		require.True(t, ok)
		assert.Same(t, handles[len(handles)-1], current)

		require.Eventually(t, func() bool {
			for _, node := range handles[:len(handles)-1] {
				if node.Health() != Invalid {
					return false
				}
			}
			return true
		}, 3*time.Second, 10*time.Millisecond)

		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With a node removed", func(t *testing.T) {
		manager := newManager(t)
		startNodeService(t, workerClient, 12)

		node, err := manager.UpdateNode(testNodeRecord(12))
		require.NoError(t, err)
		require.NoError(t, node.Connect(ctx))

		require.NoError(t, manager.RemoveNode(12))
		_, ok := manager.GetNode(12)
		assert.False(t, ok)
		require.Eventually(t, func() bool {
			return node.Health() == Invalid
		}, 3*time.Second, 10*time.Millisecond)

		assert.ErrorIs(t, manager.RemoveNode(99), gerrors.ErrNodeNotFound)
		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With live health classification", func(t *testing.T) {
		manager := newManager(t)
		startNodeService(t, workerClient, 13)
		double := startNodeService(t, workerClient, 14)
		double.failConnect.Store(true)

		healthy, err := manager.UpdateNode(testNodeRecord(13))
		require.NoError(t, err)
		broken, err := manager.UpdateNode(testNodeRecord(14))
		require.NoError(t, err)
		_, err = manager.UpdateNode(testNodeRecord(15))
		require.NoError(t, err)

		require.NoError(t, healthy.Connect(ctx))
		require.Error(t, broken.Connect(ctx))

		assert.ElementsMatch(t, []int64{13}, nodeIDs(manager.HealthyNodes()))
		assert.ElementsMatch(t, []int64{14}, nodeIDs(manager.BrokenNodes()))
		assert.ElementsMatch(t, []int64{15}, nodeIDs(manager.NotConnectedNodes()))
		assert.Equal(t, 3, manager.NodesCount())

		require.NoError(t, manager.Close(ctx))
		assert.Equal(t, 0, manager.NodesCount())
	})

	t.Run("With one user pushed to the whole fleet", func(t *testing.T) {
		manager := newManager(t)
		first := startNodeService(t, workerClient, 16)
		second := startNodeService(t, workerClient, 17)

		_, err := manager.UpdateNode(testNodeRecord(16))
		require.NoError(t, err)
		_, err = manager.UpdateNode(testNodeRecord(17))
		require.NoError(t, err)

		user := &commands.User{Username: "alice", Key: "8b17cc91"}
		require.NoError(t, manager.UpdateUser(ctx, user))

		for _, double := range []*nodeService{first, second} {
			select {
			case received := <-double.users:
				assert.Equal(t, "alice", received.Username)
			case <-time.After(2 * time.Second):
				t.Fatal("a worker never received the user")
			}
		}

		// the first rejection is surfaced to the caller
		second.failUsers.Store(true)
		require.Error(t, manager.UpdateUser(ctx, user))

		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With users synced fleet wide", func(t *testing.T) {
		manager := newManager(t)

		firstInbox := make(chan *nats.Msg, 1)
		firstSub, err := workerClient.Conn().ChanSubscribe(commands.NodeCommandSubject(18), firstInbox)
		require.NoError(t, err)
		secondInbox := make(chan *nats.Msg, 1)
		secondSub, err := workerClient.Conn().ChanSubscribe(commands.NodeCommandSubject(19), secondInbox)
		require.NoError(t, err)
		require.NoError(t, workerClient.Conn().Flush())
		defer func() {
			_ = firstSub.Unsubscribe()
			_ = secondSub.Unsubscribe()
		}()

		_, err = manager.UpdateNode(testNodeRecord(18))
		require.NoError(t, err)
		_, err = manager.UpdateNode(testNodeRecord(19))
		require.NoError(t, err)

		manager.UpdateUsers([]*commands.User{{Username: "alice"}, {Username: "bob"}})

		for _, inbox := range []chan *nats.Msg{firstInbox, secondInbox} {
			select {
			case message := <-inbox:
				received := new(codec.Request)
				require.NoError(t, json.Unmarshal(message.Data, received))
				assert.Equal(t, commands.SyncUsers, received.Action)
				payload := new(commands.SyncUsersCommand)
				require.NoError(t, json.Unmarshal(received.Payload, payload))
				assert.Len(t, payload.Users, 2)
			case <-time.After(2 * time.Second):
				t.Fatal("a worker never received the sync command")
			}
		}

		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With fleet gauges registered", func(t *testing.T) {
		meter := noop.NewMeterProvider().Meter("test")
		manager, err := NewManager(
			&Config{Client: panelClient},
			WithLogger(log.DiscardLogger),
			WithMeter(meter))
		require.NoError(t, err)
		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With an invalid record rejected", func(t *testing.T) {
		manager := newManager(t)

		node, err := manager.UpdateNode(&Record{ID: 0, Name: "zero", Address: "10.0.0.9", Port: 62050})
		require.Error(t, err)
		assert.Nil(t, node)
		assert.Equal(t, 0, manager.NodesCount())

		require.NoError(t, manager.Close(ctx))
	})

	t.Run("With a missing client rejected", func(t *testing.T) {
		manager, err := NewManager(&Config{}, WithLogger(log.DiscardLogger))
		require.Error(t, err)
		assert.Nil(t, manager)
	})
}
