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

	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/core"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/codec"
)

func TestNode(t *testing.T) {
	ctx := context.TODO()
	serv := startNatsServer(t)
	defer serv.Shutdown()

	panelClient := connectClient(t, serv)
	workerClient := connectClient(t, serv)

	t.Run("With connect and health transitions", func(t *testing.T) {
		double := startNodeService(t, workerClient, 1)
		node := newTestNode(t, panelClient, 1)
		assert.Equal(t, NotConnected, node.Health())

		require.NoError(t, node.Connect(ctx))
		assert.Equal(t, Healthy, node.Health())

		double.failConnect.Store(true)
		require.Error(t, node.Connect(ctx))
		assert.Equal(t, Broken, node.Health())

		// the worker still answers health checks even when its engine is down
		require.NoError(t, node.HealthCheck(ctx))
		assert.Equal(t, Healthy, node.Health())
	})

	t.Run("With a dead worker observed as broken", func(t *testing.T) {
		node := newTestNode(t, panelClient, 2)

		err := node.HealthCheck(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrNoResponders)
		assert.Equal(t, Broken, node.Health())
	})

	t.Run("With a user pushed", func(t *testing.T) {
		double := startNodeService(t, workerClient, 3)
		node := newTestNode(t, panelClient, 3)

		user := &commands.User{Username: "alice", Key: "8b17cc91", Inbounds: []string{"vless-in"}}
		require.NoError(t, node.UpdateUser(ctx, user))

		select {
		case received := <-double.users:
			assert.Equal(t, "alice", received.Username)
			assert.Equal(t, "8b17cc91", received.Key)
			assert.Equal(t, []string{"vless-in"}, received.Inbounds)
		case <-time.After(2 * time.Second):
			t.Fatal("worker never received the user")
		}

		double.failUsers.Store(true)
		require.Error(t, node.UpdateUser(ctx, user))
	})

	t.Run("With a core configuration applied", func(t *testing.T) {
		double := startNodeService(t, workerClient, 4)
		node := newTestNode(t, panelClient, 4)

		validated, err := core.Validate(&core.Record{
			ID:     2,
			Config: json.RawMessage(`{"inbounds":[{"tag":"vless-in","protocol":"vless"}]}`),
		})
		require.NoError(t, err)
		require.NoError(t, node.ApplyCore(ctx, validated))

		select {
		case coreID := <-double.cores:
			assert.EqualValues(t, 2, coreID)
		case <-time.After(2 * time.Second):
			t.Fatal("worker never received the core")
		}
	})

	t.Run("With system stats fetched", func(t *testing.T) {
		startNodeService(t, workerClient, 5)
		node := newTestNode(t, panelClient, 5)

		stats, err := node.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 8<<30, stats.MemTotal)
		assert.EqualValues(t, 1<<30, stats.MemUsed)
		assert.Equal(t, 4, stats.CPUCores)
		assert.InDelta(t, 12.5, stats.CPUUsage, 0.001)
		assert.Equal(t, 3, stats.OnlineUsers)
	})

	t.Run("With user stats fetched", func(t *testing.T) {
		startNodeService(t, workerClient, 6)
		node := newTestNode(t, panelClient, 6)

		stats, err := node.UserStats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", stats.Username)
		assert.True(t, stats.Online)
		assert.Equal(t, map[string]int{"203.0.113.9": 2}, stats.IPs)
	})

	t.Run("With a log session opened", func(t *testing.T) {
		startNodeService(t, workerClient, 7)
		node := newTestNode(t, panelClient, 7)

		session, err := node.TailLogs(ctx)
		require.NoError(t, err)
		assert.Equal(t, "session-1", session.ID)
		assert.Equal(t, commands.LogsSubject(session.ID), session.Subject)
		assert.Equal(t, commands.LogsStopSubject(session.ID), session.StopSubject)
	})

	t.Run("With users synced over the command subject", func(t *testing.T) {
		node := newTestNode(t, panelClient, 8)

		inbox := make(chan *nats.Msg, 1)
		subscription, err := workerClient.Conn().ChanSubscribe(commands.NodeCommandSubject(8), inbox)
		require.NoError(t, err)
		require.NoError(t, workerClient.Conn().Flush())
		defer func() {
			_ = subscription.Unsubscribe()
		}()

		users := []*commands.User{{Username: "alice"}, {Username: "bob"}}
		require.NoError(t, node.SyncUsers(users))

		select {
		case message := <-inbox:
			received := new(codec.Request)
			require.NoError(t, json.Unmarshal(message.Data, received))
			assert.Equal(t, commands.SyncUsers, received.Action)
			payload := new(commands.SyncUsersCommand)
			require.NoError(t, json.Unmarshal(received.Payload, payload))
			require.Len(t, payload.Users, 2)
			assert.Equal(t, "alice", payload.Users[0].Username)
			assert.Equal(t, "bob", payload.Users[1].Username)
		case <-time.After(2 * time.Second):
			t.Fatal("no command received")
		}
	})

	t.Run("With a retired handle rejected", func(t *testing.T) {
		double := startNodeService(t, workerClient, 9)
		node := newTestNode(t, panelClient, 9)
		require.NoError(t, node.Connect(ctx))

		node.Stop(ctx)
		assert.Equal(t, Invalid, node.Health())
		assert.Equal(t, int32(1), double.disconnects.Load())

		assert.ErrorIs(t, node.Connect(ctx), gerrors.ErrNodeStopped)
		assert.ErrorIs(t, node.HealthCheck(ctx), gerrors.ErrNodeStopped)
		assert.ErrorIs(t, node.UpdateUser(ctx, &commands.User{Username: "alice"}), gerrors.ErrNodeStopped)
		assert.ErrorIs(t, node.SyncUsers(nil), gerrors.ErrNodeStopped)

		_, err := node.Stats(ctx)
		assert.ErrorIs(t, err, gerrors.ErrNodeStopped)
		_, err = node.TailLogs(ctx)
		assert.ErrorIs(t, err, gerrors.ErrNodeStopped)

		// a second stop is a no-op
		node.Stop(ctx)
		assert.Equal(t, int32(1), double.disconnects.Load())
	})

	t.Run("With an invalid record rejected", func(t *testing.T) {
		node, err := NewNode(nil, panelClient)
		require.Error(t, err)
		assert.Nil(t, node)

		node, err = NewNode(&Record{ID: 10, Name: "berlin-1", Address: "10.0.0.8", Port: 90000}, panelClient)
		require.Error(t, err)
		assert.Nil(t, node)
	})
}
